package handler

import (
	"net/http"

	"anoa.com/alumnidirectory/internal/modules/alumni/dto"
	alumniService "anoa.com/alumnidirectory/internal/modules/alumni/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/response"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AlumniHandler struct {
	alumniService alumniService.AlumniService
}

func NewAlumniHandler(alumniService alumniService.AlumniService) *AlumniHandler {
	return &AlumniHandler{
		alumniService: alumniService,
	}
}

func requester(c *gin.Context) (dto.Requester, error) {
	userID, err := response.GetUserID(c)
	if err != nil {
		return dto.Requester{}, err
	}
	email, err := response.GetUserEmail(c)
	if err != nil {
		return dto.Requester{}, err
	}
	return dto.Requester{UserID: userID, Email: email}, nil
}

func (h *AlumniHandler) List(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.alumniService.List(c.Request.Context(), req, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AlumniHandler) Search(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.alumniService.Search(c.Request.Context(), req, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AlumniHandler) Get(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid alumni id", apperror.ErrInvalidInput))
		return
	}

	profile, err := h.alumniService.Get(c.Request.Context(), req, id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (h *AlumniHandler) Stats(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.alumniService.Stats(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
