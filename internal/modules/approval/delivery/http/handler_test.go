package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/internal/modules/approval/dto"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubApprovalService struct {
	admins       *access.AdminSet
	approvedBy   string
	rejectCalled bool
}

func (s *stubApprovalService) ConfirmSignup(ctx context.Context, user *entity.User, payload *entity.SignupPayload) (*dto.ConfirmResult, error) {
	return nil, nil
}

func (s *stubApprovalService) Resolve(ctx context.Context, user *entity.User) (*dto.ConfirmResult, error) {
	return nil, nil
}

func (s *stubApprovalService) Approve(ctx context.Context, adminEmail string, targetID uuid.UUID) (*entity.AlumniProfile, error) {
	if err := s.admins.Authorize(adminEmail); err != nil {
		return nil, err
	}
	s.approvedBy = adminEmail
	profile := &entity.AlumniProfile{ID: targetID, FullName: "Asha Rao"}
	profile.MarkApproved(adminEmail, profile.CreatedAt)
	return profile, nil
}

func (s *stubApprovalService) Reject(ctx context.Context, adminEmail string, targetID uuid.UUID) error {
	if err := s.admins.Authorize(adminEmail); err != nil {
		return err
	}
	s.rejectCalled = true
	return apperror.New(http.StatusNotFound, "no pending application with that id", apperror.ErrNotFound)
}

func (s *stubApprovalService) Dashboard(ctx context.Context, adminEmail string) (*dto.AdminDashboard, error) {
	return &dto.AdminDashboard{}, nil
}

func newRouter(svc *stubApprovalService, sessionEmail string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewApprovalHandler(svc)
	withSession := func(c *gin.Context) {
		c.Set("user_email", sessionEmail)
		c.Next()
	}
	r.POST("/approve", withSession, h.Approve)
	r.POST("/reject", withSession, h.Reject)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestApproveUsesSessionAdmin(t *testing.T) {
	svc := &stubApprovalService{admins: access.NewAdminSet([]string{"sharmanitish6116@gmail.com"})}
	r := newRouter(svc, "sharmanitish6116@gmail.com")

	target := uuid.New()
	body := `{"target_id":"` + target.String() + `","admin_email":"SharmaNitish6116@gmail.com"}`
	req := httptest.NewRequest(http.MethodPost, "/approve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	if !env.Success || env.Data == nil {
		t.Fatalf("expected success envelope with data, got %+v", env)
	}
	if svc.approvedBy != "sharmanitish6116@gmail.com" {
		t.Fatalf("expected session admin, got %q", svc.approvedBy)
	}
}

func TestApproveRejectsMismatchedAdminEmail(t *testing.T) {
	svc := &stubApprovalService{admins: access.NewAdminSet([]string{"sharmanitish6116@gmail.com"})}
	r := newRouter(svc, "asha@example.com")

	body := `{"target_id":"` + uuid.NewString() + `","admin_email":"sharmanitish6116@gmail.com"}`
	req := httptest.NewRequest(http.MethodPost, "/approve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Success || env.Error == "" {
		t.Fatalf("expected failure envelope, got %+v", env)
	}
	if svc.approvedBy != "" {
		t.Fatalf("service must not be reached")
	}
}

func TestApproveByNonAdminSession(t *testing.T) {
	svc := &stubApprovalService{admins: access.NewAdminSet([]string{"sharmanitish6116@gmail.com"})}
	r := newRouter(svc, "asha@example.com")

	body := `{"target_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/approve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDecisionValidatesTargetID(t *testing.T) {
	svc := &stubApprovalService{admins: access.NewAdminSet([]string{"sharmanitish6116@gmail.com"})}
	r := newRouter(svc, "sharmanitish6116@gmail.com")

	req := httptest.NewRequest(http.MethodPost, "/reject", strings.NewReader(`{"target_id":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.rejectCalled {
		t.Fatalf("service must not be reached")
	}
}

func TestRejectNotFound(t *testing.T) {
	svc := &stubApprovalService{admins: access.NewAdminSet([]string{"sharmanitish6116@gmail.com"})}
	r := newRouter(svc, "sharmanitish6116@gmail.com")

	body := `{"target_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/reject", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Success || env.Error != "no pending application with that id" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
