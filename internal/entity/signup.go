package entity

import "time"

// SignupPayload is the form data held server-side between signup and magic-link confirmation.
type SignupPayload struct {
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Phone      *string    `json:"phone,omitempty"`
	RollNumber *string    `json:"roll_number,omitempty"`
	Batch      BatchRange `json:"batch"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewProfile builds the unapproved row for this payload.
func (p *SignupPayload) NewProfile(user *User) *AlumniProfile {
	return &AlumniProfile{
		UserID:     user.ID,
		FullName:   p.FullName,
		Email:      NormalizeEmail(user.Email),
		Phone:      p.Phone,
		RollNumber: p.RollNumber,
		BatchStart: p.Batch.Start,
		BatchEnd:   p.Batch.End,
	}
}
