package handler

import (
	"errors"
	"net/http"

	"anoa.com/alumnidirectory/internal/modules/botcheck/dto"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"
	"anoa.com/alumnidirectory/pkg/response"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
)

type BotCheckHandler struct {
	botService botService.BotCheckService
}

func NewBotCheckHandler(botService botService.BotCheckService) *BotCheckHandler {
	return &BotCheckHandler{
		botService: botService,
	}
}

func (h *BotCheckHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.botService.Verify(c.Request.Context(), req.Token, req.Action, c.ClientIP())
	if err != nil {
		var rejection *botService.Rejection
		if errors.As(err, &rejection) {
			c.JSON(http.StatusBadRequest, dto.VerifyResponse{
				Success: false,
				Score:   rejection.Score,
				Action:  req.Action,
				Message: rejection.Reason,
			})
			return
		}
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Success: true,
		Score:   res.Score,
		Action:  res.Action,
	})
}
