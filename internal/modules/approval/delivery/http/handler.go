package handler

import (
	"net/http"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/internal/modules/approval/dto"
	approvalService "anoa.com/alumnidirectory/internal/modules/approval/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/response"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ApprovalHandler struct {
	approvalService approvalService.ApprovalService
}

func NewApprovalHandler(approvalService approvalService.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
	}
}

func (h *ApprovalHandler) Dashboard(c *gin.Context) {
	adminEmail, err := response.GetUserEmail(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.approvalService.Dashboard(c.Request.Context(), adminEmail)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ApprovalHandler) Approve(c *gin.Context) {
	adminEmail, targetID, ok := h.bindDecision(c)
	if !ok {
		return
	}

	profile, err := h.approvalService.Approve(c.Request.Context(), adminEmail, targetID)
	if err != nil {
		response.EnvelopeError(c, err)
		return
	}

	response.EnvelopeOK(c, profile)
}

func (h *ApprovalHandler) Reject(c *gin.Context) {
	adminEmail, targetID, ok := h.bindDecision(c)
	if !ok {
		return
	}

	if err := h.approvalService.Reject(c.Request.Context(), adminEmail, targetID); err != nil {
		response.EnvelopeError(c, err)
		return
	}

	response.EnvelopeOK(c, nil)
}

// bindDecision resolves the acting admin from the session. A body admin_email that
// names someone else is refused rather than trusted.
func (h *ApprovalHandler) bindDecision(c *gin.Context) (string, uuid.UUID, bool) {
	sessionEmail, err := response.GetUserEmail(c)
	if err != nil {
		response.EnvelopeError(c, err)
		return "", uuid.Nil, false
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.EnvelopeError(c, validator.ToValidationError(err))
		return "", uuid.Nil, false
	}

	if req.AdminEmail != "" && entity.NormalizeEmail(req.AdminEmail) != entity.NormalizeEmail(sessionEmail) {
		response.EnvelopeError(c, apperror.New(http.StatusForbidden, "admin_email does not match the signed-in user", apperror.ErrForbidden))
		return "", uuid.Nil, false
	}

	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		response.EnvelopeError(c, apperror.New(http.StatusBadRequest, "invalid target_id", apperror.ErrInvalidInput))
		return "", uuid.Nil, false
	}

	return sessionEmail, targetID, true
}
