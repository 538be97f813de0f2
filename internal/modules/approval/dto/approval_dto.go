package dto

import "anoa.com/alumnidirectory/internal/entity"

// ConfirmResult tells the caller where a confirmed identity stands.
type ConfirmResult struct {
	Status  entity.ApprovalStatus `json:"status"`
	Created bool                  `json:"created"`
	Profile *entity.AlumniProfile `json:"profile,omitempty"`
}

// DecisionRequest is the body of approve and reject. AdminEmail is advisory;
// the acting admin is always taken from the session.
type DecisionRequest struct {
	TargetID   string `json:"target_id" binding:"required,uuid"`
	AdminEmail string `json:"admin_email" binding:"omitempty,email"`
}

type AdminDashboard struct {
	Pending       []entity.PendingApplication `json:"pending"`
	Approved      []*entity.AlumniProfile     `json:"approved"`
	PendingTotal  int                         `json:"pending_total"`
	ApprovedTotal int64                       `json:"approved_total"`
}
