package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anoa.com/alumnidirectory/internal/modules/auth/dto"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/ratelimiter"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubAuthService struct {
	signupErr  error
	loginErr   error
	confirmErr error
	signups    int
}

func (s *stubAuthService) Signup(ctx context.Context, req dto.SignupRequest, remoteIP string) (*dto.MagicLinkResponse, error) {
	s.signups++
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &dto.MagicLinkResponse{Message: "check your email", Email: req.Email}, nil
}

func (s *stubAuthService) RequestLogin(ctx context.Context, req dto.LoginRequest, remoteIP string) (*dto.MagicLinkResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &dto.MagicLinkResponse{Message: "check your email", Email: req.Identifier}, nil
}

func (s *stubAuthService) Confirm(ctx context.Context, token string) (*dto.AuthResponse, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &dto.AuthResponse{AccessToken: "session", TokenType: "Bearer"}, nil
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.MeResponse, error) {
	return &dto.MeResponse{User: dto.UserInfo{ID: userID}}, nil
}

func newRouter(svc *stubAuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.RegisterCustomRules()

	r := gin.New()
	h := NewAuthHandler(svc)
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/confirm", h.Confirm)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const validSignup = `{"email":"asha@example.com","full_name":"Asha Rao","roll_number":"JNV123","batch_range":"2015-2022","recaptcha_token":"tok"}`

func TestSignupAccepted(t *testing.T) {
	svc := &stubAuthService{}
	rec := post(newRouter(svc), "/signup", validSignup)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.signups != 1 {
		t.Fatalf("expected service call")
	}
}

func TestSignupRejectsMalformedBatchBeforeService(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"email":"asha@example.com","full_name":"Asha Rao","roll_number":"JNV123","batch_range":"2015"}`
	rec := post(newRouter(svc), "/signup", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var res struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Fields["batch_range"] == "" {
		t.Fatalf("expected batch_range field error, got %s", rec.Body.String())
	}
	if svc.signups != 0 {
		t.Fatalf("service must not run on invalid input")
	}
}

func TestSignupSurfacesBotRejectionReason(t *testing.T) {
	svc := &stubAuthService{signupErr: &botService.Rejection{Reason: "score too low", Score: 0.3, Action: "signup"}}
	rec := post(newRouter(svc), "/signup", validSignup)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "score too low") {
		t.Fatalf("expected rejection reason in body, got %s", rec.Body.String())
	}
}

func TestLoginRateLimitedSetsRetryAfter(t *testing.T) {
	svc := &stubAuthService{loginErr: &ratelimiter.RateLimitError{Message: "too many requests", RetryAfter: 30 * time.Second}}
	rec := post(newRouter(svc), "/login", `{"identifier":"asha@example.com"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "31" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	svc := &stubAuthService{loginErr: apperror.ErrSignupRequired}
	rec := post(newRouter(svc), "/login", `{"identifier":"nobody@example.com"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConfirmStaleSignup(t *testing.T) {
	svc := &stubAuthService{confirmErr: apperror.ErrStaleSignup}
	rec := post(newRouter(svc), "/confirm", `{"token":"abc"}`)

	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rec.Code)
	}
}

func TestConfirmRequiresToken(t *testing.T) {
	rec := post(newRouter(&stubAuthService{}), "/confirm", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
