package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/logger"
)

const (
	ActionSignup        = "signup"
	ActionLogin         = "login"
	ActionResetPassword = "reset_password"

	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

	signupThreshold  = 0.7
	defaultThreshold = 0.5
)

// Threshold is the minimum score accepted for action.
func Threshold(action string) float64 {
	if action == ActionSignup {
		return signupThreshold
	}
	return defaultThreshold
}

type Result struct {
	Score  float64 `json:"score"`
	Action string  `json:"action"`
}

// Rejection is returned whenever the gate refuses a request. Reason is safe to show users.
type Rejection struct {
	Reason string
	Score  float64
	Action string
	Cause  error
}

func (r *Rejection) Error() string {
	return r.Reason
}

func (r *Rejection) Unwrap() []error {
	if r.Cause != nil {
		return []error{apperror.ErrBotRejected, r.Cause}
	}
	return []error{apperror.ErrBotRejected}
}

type BotCheckService interface {
	Verify(ctx context.Context, token, action, remoteIP string) (*Result, error)
}

type Config struct {
	Secret    string
	VerifyURL string
	// Bypass skips verification entirely; only set for local development without a secret.
	Bypass     bool
	HTTPClient *http.Client
}

type botCheckService struct {
	secret    string
	verifyURL string
	bypass    bool
	client    *http.Client
}

func NewBotCheckService(cfg Config) BotCheckService {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Bypass {
		logger.Warn().Msg("bot verification is bypassed; do not run like this in production")
	}
	return &botCheckService{
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		bypass:    cfg.Bypass,
		client:    cfg.HTTPClient,
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (s *botCheckService) Verify(ctx context.Context, token, action, remoteIP string) (*Result, error) {
	if s.bypass {
		return &Result{Score: 1, Action: action}, nil
	}

	if strings.TrimSpace(token) == "" {
		return nil, &Rejection{Reason: "verification token is missing", Action: action}
	}
	if s.secret == "" {
		return nil, &Rejection{Reason: "verification is not configured", Action: action}
	}

	form := url.Values{}
	form.Set("secret", s.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Rejection{Reason: "verification failed, please try again", Action: action, Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("action", action).Msg("bot verification request failed")
		return nil, &Rejection{Reason: "verification service unavailable, please try again", Action: action, Cause: fmt.Errorf("%w: %v", apperror.ErrRemoteService, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Rejection{Reason: "verification service unavailable, please try again", Action: action, Cause: fmt.Errorf("%w: status %d", apperror.ErrRemoteService, resp.StatusCode)}
	}

	var body siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Rejection{Reason: "verification failed, please try again", Action: action, Cause: err}
	}

	return evaluate(body, action)
}

func evaluate(body siteVerifyResponse, action string) (*Result, error) {
	if !body.Success {
		logger.Info().Strs("error_codes", body.ErrorCodes).Str("action", action).Msg("bot verification rejected by provider")
		return nil, &Rejection{Reason: "verification failed, please try again", Score: body.Score, Action: body.Action}
	}
	if body.Action != action {
		return nil, &Rejection{Reason: "verification action mismatch", Score: body.Score, Action: body.Action}
	}
	if body.Score < Threshold(action) {
		logger.Info().Float64("score", body.Score).Str("action", action).Msg("bot verification score below threshold")
		return nil, &Rejection{Reason: "we could not verify you are human, please try again", Score: body.Score, Action: body.Action}
	}
	return &Result{Score: body.Score, Action: body.Action}, nil
}
