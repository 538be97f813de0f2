package handler

import (
	"net/http"

	profileDto "anoa.com/alumnidirectory/internal/modules/profile/dto"
	profile "anoa.com/alumnidirectory/internal/modules/profile/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	commonDto "anoa.com/alumnidirectory/pkg/dto"
	"anoa.com/alumnidirectory/pkg/response"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService profile.ProfileService
}

func NewProfileHandler(profileService profile.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func (h *ProfileHandler) GetMine(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.profileService.GetMine(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input profileDto.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.profileService.Update(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil || fileHeader == nil {
		v := apperror.NewValidationError()
		v.Add("photo", "Photo is required")
		response.ResponseError(c, v)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "could not read the uploaded photo", apperror.ErrBadRequest))
		return
	}
	defer file.Close()

	res, err := h.profileService.UploadPhoto(c.Request.Context(), userID, &commonDto.PhotoFile{
		Reader:   file,
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
