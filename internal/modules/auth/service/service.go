package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/entity"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	approvalService "anoa.com/alumnidirectory/internal/modules/approval/service"
	"anoa.com/alumnidirectory/internal/modules/auth/dto"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"
	userRepo "anoa.com/alumnidirectory/internal/modules/user/repository"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/logger"
	"anoa.com/alumnidirectory/pkg/mailer"
	"anoa.com/alumnidirectory/pkg/ratelimiter"
	"anoa.com/alumnidirectory/pkg/validator"
	"github.com/google/uuid"
	playground "github.com/go-playground/validator/v10"
)

const magicLinkSentMessage = "check your email for a sign-in link"

type AuthService interface {
	Signup(ctx context.Context, req dto.SignupRequest, remoteIP string) (*dto.MagicLinkResponse, error)
	RequestLogin(ctx context.Context, req dto.LoginRequest, remoteIP string) (*dto.MagicLinkResponse, error)
	Confirm(ctx context.Context, token string) (*dto.AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*dto.MeResponse, error)
}

type Options struct {
	// BaseURL is the web client origin; links point at BaseURL + "/auth/confirm".
	BaseURL        string
	MagicLinkTTL   time.Duration
	SignupCacheTTL time.Duration
}

type authService struct {
	users      userRepo.UserRepository
	alumni     alumniRepo.AlumniRepository
	approval   approvalService.ApprovalService
	botCheck   botService.BotCheckService
	limiter    ratelimiter.Limiter
	mailer     mailer.Mailer
	signups    SignupCache
	usedTokens UsedTokenStore
	tokens     *TokenManager
	admins     *access.AdminSet
	validate   *playground.Validate
	opts       Options
	now        func() time.Time
}

func NewAuthService(
	users userRepo.UserRepository,
	alumni alumniRepo.AlumniRepository,
	approval approvalService.ApprovalService,
	botCheck botService.BotCheckService,
	limiter ratelimiter.Limiter,
	m mailer.Mailer,
	signups SignupCache,
	usedTokens UsedTokenStore,
	tokens *TokenManager,
	admins *access.AdminSet,
	opts Options,
) AuthService {
	return &authService{
		users:      users,
		alumni:     alumni,
		approval:   approval,
		botCheck:   botCheck,
		limiter:    limiter,
		mailer:     m,
		signups:    signups,
		usedTokens: usedTokens,
		tokens:     tokens,
		admins:     admins,
		validate:   validator.New(),
		opts:       opts,
		now:        time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, req dto.SignupRequest, remoteIP string) (*dto.MagicLinkResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validator.ToValidationError(err)
	}

	if _, err := s.botCheck.Verify(ctx, req.RecaptchaToken, botService.ActionSignup, remoteIP); err != nil {
		return nil, err
	}

	email := entity.NormalizeEmail(req.Email)
	if err := s.limiter.Allow(ctx, email); err != nil {
		return nil, err
	}

	if _, err := s.alumni.FindByEmail(ctx, email); err == nil {
		return nil, apperror.New(http.StatusConflict, "this email is already registered, please log in", apperror.ErrConflict)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	batch, err := entity.ParseBatchRange(req.BatchRange)
	if err != nil {
		return nil, apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrInvalidInput)
	}

	rollNumber := strings.TrimSpace(req.RollNumber)
	payload := &entity.SignupPayload{
		Email:      email,
		FullName:   strings.TrimSpace(req.FullName),
		RollNumber: &rollNumber,
		Batch:      batch,
		CreatedAt:  s.now(),
	}
	if phone := validator.NormalizePhone(req.Phone); phone != "" {
		payload.Phone = &phone
	}

	signupID := uuid.NewString()
	if err := s.signups.Put(ctx, signupID, payload, s.opts.SignupCacheTTL); err != nil {
		return nil, fmt.Errorf("store signup: %w", err)
	}

	if err := s.sendLink(email, IntentSignup, signupID); err != nil {
		return nil, err
	}

	logger.Info().Str("email", email).Msg("signup magic link sent")
	return &dto.MagicLinkResponse{Message: magicLinkSentMessage, Email: email}, nil
}

func (s *authService) RequestLogin(ctx context.Context, req dto.LoginRequest, remoteIP string) (*dto.MagicLinkResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validator.ToValidationError(err)
	}

	if _, err := s.botCheck.Verify(ctx, req.RecaptchaToken, botService.ActionLogin, remoteIP); err != nil {
		return nil, err
	}

	identifier := strings.TrimSpace(req.Identifier)
	if err := s.limiter.Allow(ctx, strings.ToLower(identifier)); err != nil {
		return nil, err
	}

	email, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := s.sendLink(email, IntentLogin, ""); err != nil {
		return nil, err
	}

	logger.Info().Str("email", email).Msg("login magic link sent")
	return &dto.MagicLinkResponse{Message: magicLinkSentMessage, Email: email}, nil
}

// resolveIdentifier turns an email or phone number into the email the link goes to.
// Phones are matched across pending and approved records.
func (s *authService) resolveIdentifier(ctx context.Context, identifier string) (string, error) {
	signupRequired := apperror.New(http.StatusNotFound, "no account found, please sign up", apperror.ErrSignupRequired)

	if strings.Contains(identifier, "@") {
		email := entity.NormalizeEmail(identifier)
		if s.admins.IsAdmin(email) {
			return email, nil
		}
		if _, err := s.alumni.FindByEmail(ctx, email); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return "", signupRequired
			}
			return "", err
		}
		return email, nil
	}

	if !validator.IsPhone(identifier) {
		v := apperror.NewValidationError()
		v.Add("identifier", "enter a valid email address or phone number")
		return "", v
	}

	profile, err := s.alumni.FindByPhone(ctx, validator.NormalizePhone(identifier))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", signupRequired
		}
		return "", err
	}
	return profile.Email, nil
}

func (s *authService) sendLink(email, intent, signupID string) error {
	token, _, err := s.tokens.IssueMagicLink(email, intent, signupID)
	if err != nil {
		return fmt.Errorf("issue magic link: %w", err)
	}

	link := s.opts.BaseURL + "/auth/confirm?token=" + url.QueryEscape(token)
	if err := s.mailer.SendMagicLink(email, link, intent == IntentSignup); err != nil {
		logger.Error().Err(err).Str("email", email).Msg("failed to send magic link")
		return apperror.Wrap(fmt.Errorf("%w: %v", apperror.ErrRemoteService, err), "could not send the sign-in email, please try again")
	}
	return nil
}

func (s *authService) Confirm(ctx context.Context, token string) (res *dto.AuthResponse, err error) {
	claims, err := s.tokens.ParseMagicLink(token)
	if err != nil {
		return nil, apperror.New(http.StatusUnauthorized, "this link is invalid or has expired", apperror.ErrUnauthorized)
	}

	ttl := s.opts.MagicLinkTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	fresh, err := s.usedTokens.MarkUsed(ctx, claims.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("mark link used: %w", err)
	}
	if !fresh {
		return nil, apperror.New(http.StatusUnauthorized, "this link has already been used", apperror.ErrUnauthorized)
	}
	// Server-side failures give the link back; stale or invalid signups keep it consumed.
	defer func() {
		if err == nil || apperror.MapErrorToStatus(err) < http.StatusInternalServerError {
			return
		}
		if releaseErr := s.usedTokens.Release(context.WithoutCancel(ctx), claims.ID); releaseErr != nil {
			logger.Warn().Err(releaseErr).Msg("failed to release magic link after confirm error")
		}
	}()

	user, err := s.users.FindOrCreateByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	now := s.now()
	if err := s.users.TouchSignIn(ctx, user.ID, now); err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record sign-in time")
	}

	var status entity.ApprovalStatus
	var profile *entity.AlumniProfile
	var created bool

	if claims.Intent == IntentSignup {
		payload, err := s.signups.Get(ctx, claims.SignupID)
		if err != nil {
			return nil, fmt.Errorf("load signup: %w", err)
		}
		res, err := s.approval.ConfirmSignup(ctx, user, payload)
		if err != nil {
			return nil, err
		}
		if err := s.signups.Delete(ctx, claims.SignupID); err != nil {
			logger.Warn().Err(err).Msg("failed to clear signup cache entry")
		}
		status, profile, created = res.Status, res.Profile, res.Created
	} else {
		res, err := s.approval.Resolve(ctx, user)
		if err != nil {
			return nil, err
		}
		status, profile = res.Status, res.Profile
	}

	accessToken, expiresAt, err := s.tokens.IssueSession(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	return &dto.AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        dto.UserInfo{ID: user.ID, Email: user.Email},
		Status:      status,
		IsAdmin:     s.admins.IsAdmin(user.Email),
		Created:     created,
		Profile:     profile,
	}, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*dto.MeResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}

	res, err := s.approval.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.MeResponse{
		User:    dto.UserInfo{ID: user.ID, Email: user.Email},
		Status:  res.Status,
		IsAdmin: s.admins.IsAdmin(user.Email),
		Profile: res.Profile,
	}, nil
}
