package validator

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/apperror"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	registerOnce sync.Once
)

// RegisterCustomRules adds the domain tags used in request DTOs to gin's validator.
// Safe to call more than once.
func RegisterCustomRules() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})
}

// New returns a standalone validator with the same custom rules, for services.
// It reads the same `binding` tags gin does.
func New() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	register(v)
	return v
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("batch_range", func(fl validator.FieldLevel) bool {
		b, err := entity.ParseBatchRange(fl.Field().String())
		if err != nil {
			return false
		}
		return b.Validate(time.Now()) == nil
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
}

// NormalizePhone strips spaces, dashes and brackets.
func NormalizePhone(raw string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	return replacer.Replace(strings.TrimSpace(raw))
}

func IsPhone(raw string) bool {
	return phonePattern.MatchString(NormalizePhone(raw))
}

// ToValidationError converts validator errors into a field map. Other errors pass through
// as a bad request.
func ToValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrBadRequest)
	}

	v := apperror.NewValidationError()
	for _, fieldError := range validationErrors {
		v.Add(jsonName(fieldError.Field()), getFieldErrorMessage(fieldError))
	}
	return v
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "batch_range":
		return fmt.Sprintf("%s must look like YYYY-YYYY with a start year from %d", field, entity.MinBatchYear)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Email":          "Email",
		"FullName":       "Full name",
		"Phone":          "Phone",
		"RollNo":         "Roll number",
		"RollNumber":     "Roll number",
		"BatchRange":     "Batch",
		"BatchStart":     "Batch start",
		"BatchEnd":       "Batch end",
		"Identifier":     "Email or phone",
		"RecaptchaToken": "Verification token",
		"Token":          "Token",
		"Action":         "Action",
		"Bio":            "Bio",
		"LinkedInURL":    "LinkedIn URL",
		"TwitterURL":     "Twitter URL",
		"InstagramURL":   "Instagram URL",
		"FacebookURL":    "Facebook URL",
		"TargetID":       "Target id",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

func jsonName(field string) string {
	names := map[string]string{
		"RollNo":         "roll_no",
		"LinkedInURL":    "linkedin_url",
		"TwitterURL":     "twitter_url",
		"InstagramURL":   "instagram_url",
		"FacebookURL":    "facebook_url",
		"TargetID":       "target_id",
		"RecaptchaToken": "recaptcha_token",
	}
	if name, ok := names[field]; ok {
		return name
	}

	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
