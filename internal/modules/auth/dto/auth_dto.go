package dto

import (
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"github.com/google/uuid"
)

type SignupRequest struct {
	Email          string `json:"email" binding:"required,email,max=255"`
	FullName       string `json:"full_name" binding:"required,min=2,max=100"`
	Phone          string `json:"phone" binding:"omitempty,phone"`
	RollNumber     string `json:"roll_number" binding:"required,max=50"`
	BatchRange     string `json:"batch_range" binding:"required,batch_range"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// LoginRequest identifies the account by email or phone number.
type LoginRequest struct {
	Identifier     string `json:"identifier" binding:"required,max=255"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type ConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

type MagicLinkResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type UserInfo struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type AuthResponse struct {
	AccessToken string                `json:"access_token"`
	TokenType   string                `json:"token_type"`
	ExpiresAt   time.Time             `json:"expires_at"`
	User        UserInfo              `json:"user"`
	Status      entity.ApprovalStatus `json:"status"`
	IsAdmin     bool                  `json:"is_admin"`
	Created     bool                  `json:"created"`
	Profile     *entity.AlumniProfile `json:"profile,omitempty"`
}

type MeResponse struct {
	User    UserInfo              `json:"user"`
	Status  entity.ApprovalStatus `json:"status"`
	IsAdmin bool                  `json:"is_admin"`
	Profile *entity.AlumniProfile `json:"profile,omitempty"`
}
