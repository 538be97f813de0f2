package dto

import "anoa.com/alumnidirectory/internal/entity"

// UpdateProfileInput carries only the fields being changed. An empty string clears an
// optional field. Batch years, work, location and social links are editable once approved.
type UpdateProfileInput struct {
	FullName     *string `json:"full_name" binding:"omitempty,max=100"`
	Phone        *string `json:"phone" binding:"omitempty,max=20"`
	RollNumber   *string `json:"roll_number" binding:"omitempty,max=50"`
	Bio          *string `json:"bio" binding:"omitempty,max=1000"`
	BatchStart   *int    `json:"batch_start"`
	BatchEnd     *int    `json:"batch_end"`
	CurrentJob   *string `json:"current_job" binding:"omitempty,max=100"`
	Company      *string `json:"company" binding:"omitempty,max=100"`
	City         *string `json:"city" binding:"omitempty,max=100"`
	State        *string `json:"state" binding:"omitempty,max=100"`
	LinkedInURL  *string `json:"linkedin_url" binding:"omitempty,max=255"`
	TwitterURL   *string `json:"twitter_url" binding:"omitempty,max=255"`
	InstagramURL *string `json:"instagram_url" binding:"omitempty,max=255"`
	FacebookURL  *string `json:"facebook_url" binding:"omitempty,max=255"`
}

type ProfileResponse struct {
	Status  entity.ApprovalStatus `json:"status"`
	Profile *entity.AlumniProfile `json:"profile"`
}
