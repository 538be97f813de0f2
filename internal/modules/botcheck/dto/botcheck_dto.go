package dto

type VerifyRequest struct {
	Token  string `json:"token" binding:"required"`
	Action string `json:"action" binding:"required,oneof=signup login reset_password"`
}

type VerifyResponse struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
	Action  string  `json:"action"`
	Message string  `json:"message,omitempty"`
}
