package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/entity"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	"anoa.com/alumnidirectory/internal/modules/approval/dto"
	notifDto "anoa.com/alumnidirectory/internal/modules/notification/dto"
	notifService "anoa.com/alumnidirectory/internal/modules/notification/service"
	searchService "anoa.com/alumnidirectory/internal/modules/search/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	"anoa.com/alumnidirectory/pkg/logger"
	"github.com/google/uuid"
)

const dashboardApprovedLimit = 100

type ApprovalService interface {
	// ConfirmSignup runs after a signup magic link is verified.
	ConfirmSignup(ctx context.Context, user *entity.User, payload *entity.SignupPayload) (*dto.ConfirmResult, error)
	// Resolve reports the state of an identity that signed in without signing up.
	Resolve(ctx context.Context, user *entity.User) (*dto.ConfirmResult, error)
	Approve(ctx context.Context, adminEmail string, targetID uuid.UUID) (*entity.AlumniProfile, error)
	Reject(ctx context.Context, adminEmail string, targetID uuid.UUID) error
	Dashboard(ctx context.Context, adminEmail string) (*dto.AdminDashboard, error)
}

type approvalService struct {
	repo       alumniRepo.AlumniRepository
	admins     *access.AdminSet
	dispatcher notifService.Dispatcher
	feed       notifService.Feed
	search     searchService.AlumniSearchService
	now        func() time.Time
}

// NewApprovalService accepts a nil search service when search is not configured.
func NewApprovalService(
	repo alumniRepo.AlumniRepository,
	admins *access.AdminSet,
	dispatcher notifService.Dispatcher,
	feed notifService.Feed,
	search searchService.AlumniSearchService,
) ApprovalService {
	return &approvalService{
		repo:       repo,
		admins:     admins,
		dispatcher: dispatcher,
		feed:       feed,
		search:     search,
		now:        time.Now,
	}
}

func (s *approvalService) ConfirmSignup(ctx context.Context, user *entity.User, payload *entity.SignupPayload) (*dto.ConfirmResult, error) {
	existing, err := s.repo.FindByUserIDOrEmail(ctx, user.ID, user.Email)
	if err == nil {
		return &dto.ConfirmResult{Status: existing.Status(), Profile: existing}, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("lookup existing profile: %w", err)
	}

	if payload == nil || entity.NormalizeEmail(payload.Email) != entity.NormalizeEmail(user.Email) {
		return nil, apperror.New(http.StatusGone, "signup details expired, please sign up again", apperror.ErrStaleSignup)
	}

	profile := payload.NewProfile(user)
	if s.admins.IsAdmin(user.Email) {
		profile.MarkApproved(entity.AutoApprovedBy, s.now())
	}

	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// a concurrent confirmation won the insert
			if existing, findErr := s.repo.FindByUserIDOrEmail(ctx, user.ID, user.Email); findErr == nil {
				return &dto.ConfirmResult{Status: existing.Status(), Profile: existing}, nil
			}
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if profile.IsApproved {
		logger.Info().Str("email", profile.Email).Msg("privileged signup auto-approved")
		s.index(ctx, profile)
	} else {
		logger.Info().Str("email", profile.Email).Str("profile_id", profile.ID.String()).Msg("pending application created")
		s.publish(ctx, notifDto.EventApplicationCreated, profile, "")
	}

	return &dto.ConfirmResult{Status: profile.Status(), Created: true, Profile: profile}, nil
}

func (s *approvalService) Resolve(ctx context.Context, user *entity.User) (*dto.ConfirmResult, error) {
	profile, err := s.repo.FindByUserIDOrEmail(ctx, user.ID, user.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		return &dto.ConfirmResult{Status: entity.StatusUnregistered}, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto.ConfirmResult{Status: profile.Status(), Profile: profile}, nil
}

func (s *approvalService) Approve(ctx context.Context, adminEmail string, targetID uuid.UUID) (*entity.AlumniProfile, error) {
	if err := s.admins.Authorize(adminEmail); err != nil {
		return nil, err
	}
	adminEmail = entity.NormalizeEmail(adminEmail)

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, notFound(err)
	}
	if target.IsApproved {
		return target, nil
	}

	now := s.now()
	changed, err := s.repo.Approve(ctx, targetID, adminEmail, now)
	if err != nil {
		return nil, fmt.Errorf("approve profile: %w", err)
	}
	if !changed {
		// approved or rejected by someone else since the read
		current, err := s.repo.FindByID(ctx, targetID)
		if err != nil {
			return nil, notFound(err)
		}
		return current, nil
	}

	target.MarkApproved(adminEmail, now)
	logger.Info().
		Str("profile_id", target.ID.String()).
		Str("approved_by", adminEmail).
		Msg("application approved")

	s.index(ctx, target)
	if err := s.dispatcher.DispatchWelcome(ctx, notifService.NewWelcomeEvent(target)); err != nil {
		logger.Error().Err(err).Str("email", target.Email).Msg("welcome notification failed")
	}
	s.publish(ctx, notifDto.EventApplicationApproved, target, adminEmail)

	return target, nil
}

func (s *approvalService) Reject(ctx context.Context, adminEmail string, targetID uuid.UUID) error {
	if err := s.admins.Authorize(adminEmail); err != nil {
		return err
	}
	adminEmail = entity.NormalizeEmail(adminEmail)

	deleted, err := s.repo.DeletePending(ctx, targetID)
	if err != nil {
		return fmt.Errorf("reject application: %w", err)
	}
	if !deleted {
		return apperror.New(http.StatusNotFound, "no pending application with that id", apperror.ErrNotFound)
	}

	logger.Info().
		Str("profile_id", targetID.String()).
		Str("rejected_by", adminEmail).
		Msg("application rejected")
	s.publish(ctx, notifDto.EventApplicationRejected, &entity.AlumniProfile{ID: targetID}, adminEmail)

	return nil
}

func (s *approvalService) Dashboard(ctx context.Context, adminEmail string) (*dto.AdminDashboard, error) {
	if err := s.admins.Authorize(adminEmail); err != nil {
		return nil, err
	}

	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	approved, total, err := s.repo.ListApproved(ctx, alumniRepo.Filter{
		SortBy: "newest",
		Limit:  dashboardApprovedLimit,
	})
	if err != nil {
		return nil, err
	}

	dashboard := &dto.AdminDashboard{
		Pending:       make([]entity.PendingApplication, 0, len(pending)),
		Approved:      approved,
		PendingTotal:  len(pending),
		ApprovedTotal: total,
	}
	for _, p := range pending {
		dashboard.Pending = append(dashboard.Pending, p.AsPending())
	}
	if dashboard.Approved == nil {
		dashboard.Approved = []*entity.AlumniProfile{}
	}
	return dashboard, nil
}

func (s *approvalService) index(ctx context.Context, profile *entity.AlumniProfile) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexProfile(ctx, profile); err != nil {
		logger.Warn().Err(err).Str("profile_id", profile.ID.String()).Msg("failed to index profile")
	}
}

func (s *approvalService) publish(ctx context.Context, eventType string, profile *entity.AlumniProfile, actor string) {
	if s.feed == nil {
		return
	}
	event := notifDto.FeedEvent{
		Type:          eventType,
		ApplicationID: profile.ID,
		FullName:      profile.FullName,
		Email:         profile.Email,
		Actor:         actor,
		OccurredAt:    s.now(),
	}
	if profile.BatchStart != 0 {
		event.Batch = profile.Batch().String()
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish admin feed event")
	}
}

func notFound(err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.New(http.StatusNotFound, "application not found", apperror.ErrNotFound)
	}
	return err
}
