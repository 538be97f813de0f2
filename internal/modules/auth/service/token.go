package service

import (
	"errors"
	"fmt"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	IntentSignup = "signup"
	IntentLogin  = "login"

	purposeMagicLink = "magic_link"
	purposeSession   = "session"
)

var ErrInvalidToken = errors.New("invalid token")

// MagicLinkClaims travel in the emailed link. SignupID points at the server-side signup cache.
type MagicLinkClaims struct {
	Email    string `json:"email"`
	Intent   string `json:"intent"`
	SignupID string `json:"sid,omitempty"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

type SessionClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 magic-link and session tokens.
type TokenManager struct {
	secret       []byte
	magicLinkTTL time.Duration
	sessionTTL   time.Duration
	now          func() time.Time
}

func NewTokenManager(secret string, magicLinkTTL, sessionTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:       []byte(secret),
		magicLinkTTL: magicLinkTTL,
		sessionTTL:   sessionTTL,
		now:          time.Now,
	}
}

func (m *TokenManager) IssueMagicLink(email, intent, signupID string) (string, *MagicLinkClaims, error) {
	now := m.now()
	claims := &MagicLinkClaims{
		Email:    entity.NormalizeEmail(email),
		Intent:   intent,
		SignupID: signupID,
		Purpose:  purposeMagicLink,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   entity.NormalizeEmail(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.magicLinkTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (m *TokenManager) ParseMagicLink(tokenString string) (*MagicLinkClaims, error) {
	claims := &MagicLinkClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != purposeMagicLink || claims.ID == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	if claims.Intent != IntentSignup && claims.Intent != IntentLogin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) IssueSession(user *entity.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.sessionTTL)
	claims := &SessionClaims{
		Email:   entity.NormalizeEmail(user.Email),
		Purpose: purposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (m *TokenManager) ParseSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != purposeSession || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
