package access

import (
	"fmt"
	"net/http"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/apperror"
)

// AdminSet is the privileged-email set, built once from configuration and shared read-only.
type AdminSet struct {
	emails map[string]struct{}
}

func NewAdminSet(emails []string) *AdminSet {
	set := &AdminSet{emails: make(map[string]struct{}, len(emails))}
	for _, email := range emails {
		normalized := entity.NormalizeEmail(email)
		if normalized != "" {
			set.emails[normalized] = struct{}{}
		}
	}
	return set
}

func (s *AdminSet) IsAdmin(email string) bool {
	if s == nil {
		return false
	}
	_, ok := s.emails[entity.NormalizeEmail(email)]
	return ok
}

// Authorize returns an error matching apperror.ErrForbidden unless email is privileged.
func (s *AdminSet) Authorize(email string) error {
	if email == "" {
		return apperror.New(http.StatusForbidden, "admin access required", apperror.ErrForbidden)
	}
	if !s.IsAdmin(email) {
		return apperror.New(http.StatusForbidden, fmt.Sprintf("%s is not an administrator", entity.NormalizeEmail(email)), apperror.ErrForbidden)
	}
	return nil
}

func (s *AdminSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.emails)
}
