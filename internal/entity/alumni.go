package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoApprovedBy marks profiles created directly for privileged identities.
const AutoApprovedBy = "auto-approved-admin"

type ApprovalStatus string

const (
	StatusUnregistered ApprovalStatus = "unregistered"
	StatusPending      ApprovalStatus = "pending"
	StatusApproved     ApprovalStatus = "approved"
)

// AlumniProfile holds both pending applications (IsApproved=false) and approved alumni.
// Approval flips the flag in place; rejection deletes only unapproved rows.
type AlumniProfile struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	FullName     string     `gorm:"size:100;not null" json:"full_name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone        *string    `gorm:"size:20;index" json:"phone,omitempty"`
	RollNumber   *string    `gorm:"size:50" json:"roll_number,omitempty"`
	BatchStart   int        `gorm:"not null;index:idx_alumni_batch" json:"batch_start"`
	BatchEnd     int        `gorm:"not null;index:idx_alumni_batch" json:"batch_end"`
	Bio          *string    `gorm:"type:text" json:"bio,omitempty"`
	PhotoURL     *string    `gorm:"type:text" json:"photo_url,omitempty"`
	CurrentJob   *string    `gorm:"size:100" json:"current_job,omitempty"`
	Company      *string    `gorm:"size:100" json:"company,omitempty"`
	City         *string    `gorm:"size:100;index" json:"city,omitempty"`
	State        *string    `gorm:"size:100" json:"state,omitempty"`
	LinkedInURL  *string    `gorm:"type:text" json:"linkedin_url,omitempty"`
	TwitterURL   *string    `gorm:"type:text" json:"twitter_url,omitempty"`
	InstagramURL *string    `gorm:"type:text" json:"instagram_url,omitempty"`
	FacebookURL  *string    `gorm:"type:text" json:"facebook_url,omitempty"`
	IsApproved   bool       `gorm:"not null;default:false;index" json:"is_approved"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ApprovedBy   *string    `gorm:"size:255" json:"approved_by"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *AlumniProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Email = NormalizeEmail(p.Email)
	return nil
}

func (p *AlumniProfile) Status() ApprovalStatus {
	if p == nil {
		return StatusUnregistered
	}
	if p.IsApproved {
		return StatusApproved
	}
	return StatusPending
}

func (p *AlumniProfile) Batch() BatchRange {
	return BatchRange{Start: p.BatchStart, End: p.BatchEnd}
}

// MarkApproved applies the approval fields; it does not persist anything.
func (p *AlumniProfile) MarkApproved(by string, at time.Time) {
	p.IsApproved = true
	p.ApprovedAt = &at
	p.ApprovedBy = &by
}

// PendingApplication is the view of an unapproved row shown to admins and applicants.
type PendingApplication struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	RollNumber *string   `json:"roll_number,omitempty"`
	BatchStart int       `json:"batch_start"`
	BatchEnd   int       `json:"batch_end"`
	Bio        *string   `json:"bio,omitempty"`
	PhotoURL   *string   `json:"photo_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *AlumniProfile) AsPending() PendingApplication {
	return PendingApplication{
		ID:         p.ID,
		UserID:     p.UserID,
		FullName:   p.FullName,
		Email:      p.Email,
		Phone:      p.Phone,
		RollNumber: p.RollNumber,
		BatchStart: p.BatchStart,
		BatchEnd:   p.BatchEnd,
		Bio:        p.Bio,
		PhotoURL:   p.PhotoURL,
		CreatedAt:  p.CreatedAt,
	}
}
