package handler

import (
	"errors"
	"net/http"
	"strconv"

	"anoa.com/alumnidirectory/internal/modules/auth/dto"
	authService "anoa.com/alumnidirectory/internal/modules/auth/service"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"
	"anoa.com/alumnidirectory/pkg/ratelimiter"
	"anoa.com/alumnidirectory/pkg/response"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService authService.AuthService
}

func NewAuthHandler(authService authService.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.authService.Signup(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": res})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.authService.RequestLogin(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": res})
}

func (h *AuthHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.authService.Confirm(c.Request.Context(), req.Token)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

// fail adds the bot-check reason and Retry-After where they apply.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	var rejection *botService.Rejection
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection.Reason, "score": rejection.Score})
		return
	}

	var limited *ratelimiter.RateLimitError
	if errors.As(err, &limited) {
		c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
	}

	response.ResponseError(c, err)
}
