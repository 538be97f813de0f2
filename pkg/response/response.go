package response

import (
	"errors"
	"net/http"

	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Envelope is the body shape of the admin decision endpoints.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetUserEmail returns the session email set by RequireAuth.
func GetUserEmail(c *gin.Context) (string, error) {
	email := c.GetString("user_email")
	if email == "" {
		return "", apperror.ErrUnauthorized
	}
	return email, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	body := gin.H{"error": publicMessage(code, err)}

	var validationErr *apperror.ValidationError
	if errors.As(err, &validationErr) {
		body["fields"] = validationErr.Fields
	}

	c.JSON(code, body)
}

// EnvelopeError writes err using the {success:false, error} shape.
func EnvelopeError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, Envelope{Success: false, Error: publicMessage(code, err)})
}

func EnvelopeOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// storage and driver errors are not shown to clients
func publicMessage(code int, err error) string {
	var appErr *apperror.AppError
	if code == http.StatusInternalServerError && !errors.As(err, &appErr) {
		return "something went wrong, please try again"
	}
	return err.Error()
}
