package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"anoa.com/alumnidirectory/pkg/apperror"
)

func newVerifyServer(t *testing.T, success bool, score float64, action string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") != "test-secret" {
			t.Errorf("expected secret to be sent, got %q", r.PostForm.Get("secret"))
		}
		if r.PostForm.Get("response") == "" {
			t.Errorf("expected response token to be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":%t,"score":%v,"action":%q}`, success, score, action)
	}))
}

func newTestService(url string) BotCheckService {
	return NewBotCheckService(Config{Secret: "test-secret", VerifyURL: url})
}

func TestSignupThreshold(t *testing.T) {
	cases := []struct {
		score  float64
		accept bool
	}{
		{0.69, false},
		{0.70, true},
		{0.9, true},
	}

	for _, tc := range cases {
		srv := newVerifyServer(t, true, tc.score, ActionSignup)
		res, err := newTestService(srv.URL).Verify(context.Background(), "tok", ActionSignup, "")
		srv.Close()

		if tc.accept {
			if err != nil {
				t.Fatalf("score %v: expected accept, got %v", tc.score, err)
			}
			if res.Score != tc.score || res.Action != ActionSignup {
				t.Fatalf("score %v: unexpected result %+v", tc.score, res)
			}
			continue
		}

		var rejection *Rejection
		if !errors.As(err, &rejection) {
			t.Fatalf("score %v: expected rejection, got %v", tc.score, err)
		}
		if rejection.Score != tc.score || rejection.Reason == "" {
			t.Fatalf("score %v: unexpected rejection %+v", tc.score, rejection)
		}
		if !errors.Is(err, apperror.ErrBotRejected) {
			t.Fatalf("expected rejection to match ErrBotRejected")
		}
	}
}

func TestLoginUsesDefaultThreshold(t *testing.T) {
	srv := newVerifyServer(t, true, 0.5, ActionLogin)
	defer srv.Close()

	if _, err := newTestService(srv.URL).Verify(context.Background(), "tok", ActionLogin, "10.0.0.1"); err != nil {
		t.Fatalf("expected 0.5 to pass for login, got %v", err)
	}
	if Threshold(ActionResetPassword) != 0.5 {
		t.Fatalf("expected 0.5 threshold for reset_password")
	}
}

func TestRejectsActionMismatch(t *testing.T) {
	srv := newVerifyServer(t, true, 0.95, ActionLogin)
	defer srv.Close()

	_, err := newTestService(srv.URL).Verify(context.Background(), "tok", ActionSignup, "")
	var rejection *Rejection
	if !errors.As(err, &rejection) || rejection.Reason != "verification action mismatch" {
		t.Fatalf("expected action mismatch rejection, got %v", err)
	}
}

func TestRejectsProviderFailure(t *testing.T) {
	srv := newVerifyServer(t, false, 0.9, ActionSignup)
	defer srv.Close()

	_, err := newTestService(srv.URL).Verify(context.Background(), "tok", ActionSignup, "")
	if !errors.Is(err, apperror.ErrBotRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestRejectsMissingToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL).Verify(context.Background(), "  ", ActionLogin, "")
	if !errors.Is(err, apperror.ErrBotRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if called {
		t.Fatalf("verification service must not be called without a token")
	}
}

func TestFailsClosedWhenServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestService(srv.URL).Verify(context.Background(), "tok", ActionLogin, "")
	if !errors.Is(err, apperror.ErrBotRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !errors.Is(err, apperror.ErrRemoteService) {
		t.Fatalf("expected remote service cause, got %v", err)
	}
	if apperror.MapErrorToStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected rejection to map to 400")
	}
}

func TestBypass(t *testing.T) {
	svc := NewBotCheckService(Config{Bypass: true})
	res, err := svc.Verify(context.Background(), "", ActionSignup, "")
	if err != nil {
		t.Fatalf("expected bypass to accept, got %v", err)
	}
	if res.Action != ActionSignup {
		t.Fatalf("unexpected result %+v", res)
	}
}
