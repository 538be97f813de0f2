package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/alumnidirectory/internal/entity"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	profileDto "anoa.com/alumnidirectory/internal/modules/profile/dto"
	searchService "anoa.com/alumnidirectory/internal/modules/search/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	commonDto "anoa.com/alumnidirectory/pkg/dto"
	"anoa.com/alumnidirectory/pkg/logger"
	"anoa.com/alumnidirectory/pkg/storage"
	"anoa.com/alumnidirectory/pkg/validator"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxPhotoSize       = 5 << 20
	DefaultPhotoFolder = "alumni_photos"

	approvedOnlyMessage = "can be edited once your application is approved"
)

type ProfileService interface {
	GetMine(ctx context.Context, userID uuid.UUID) (*profileDto.ProfileResponse, error)
	Update(ctx context.Context, userID uuid.UUID, input profileDto.UpdateProfileInput) (*profileDto.ProfileResponse, error)
	UploadPhoto(ctx context.Context, userID uuid.UUID, photo *commonDto.PhotoFile) (*profileDto.ProfileResponse, error)
}

type profileService struct {
	repo         alumniRepo.AlumniRepository
	imageStorage storage.ImageStorage
	search       searchService.AlumniSearchService
	photoFolder  string
	sanitizer    *bluemonday.Policy
	validate     *playground.Validate
	now          func() time.Time
}

// NewProfileService accepts nil imageStorage and search when those are not configured.
func NewProfileService(repo alumniRepo.AlumniRepository, imageStorage storage.ImageStorage, search searchService.AlumniSearchService, photoFolder string) ProfileService {
	if photoFolder == "" {
		photoFolder = DefaultPhotoFolder
	}
	return &profileService{
		repo:         repo,
		imageStorage: imageStorage,
		search:       search,
		photoFolder:  photoFolder,
		sanitizer:    bluemonday.StrictPolicy(),
		validate:     validator.New(),
		now:          time.Now,
	}
}

func (s *profileService) GetMine(ctx context.Context, userID uuid.UUID) (*profileDto.ProfileResponse, error) {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &profileDto.ProfileResponse{Status: profile.Status(), Profile: profile}, nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, input profileDto.UpdateProfileInput) (*profileDto.ProfileResponse, error) {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	verr := apperror.NewValidationError()
	if err := s.validate.Struct(input); err != nil {
		var fields *apperror.ValidationError
		if !errors.As(validator.ToValidationError(err), &fields) {
			return nil, err
		}
		for field, message := range fields.Fields {
			verr.Add(field, message)
		}
	}

	// Work on a copy so a failed validation never leaves a half-applied profile behind.
	updated := *profile

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if utf8.RuneCountInString(name) < 2 {
			verr.Add("full_name", "Full name must be at least 2 characters")
		}
		updated.FullName = name
	}

	if input.Phone != nil {
		phone := validator.NormalizePhone(*input.Phone)
		if phone != "" && !validator.IsPhone(phone) {
			verr.Add("phone", "Phone must be a valid phone number")
		}
		updated.Phone = optional(phone)
	}

	if input.RollNumber != nil {
		updated.RollNumber = optional(strings.TrimSpace(*input.RollNumber))
	}

	if input.Bio != nil {
		updated.Bio = optional(strings.TrimSpace(s.sanitizer.Sanitize(*input.Bio)))
	}

	approvedOnly := map[string]bool{
		"batch_start":   input.BatchStart != nil,
		"batch_end":     input.BatchEnd != nil,
		"current_job":   input.CurrentJob != nil,
		"company":       input.Company != nil,
		"city":          input.City != nil,
		"state":         input.State != nil,
		"linkedin_url":  input.LinkedInURL != nil,
		"twitter_url":   input.TwitterURL != nil,
		"instagram_url": input.InstagramURL != nil,
		"facebook_url":  input.FacebookURL != nil,
	}

	if !profile.IsApproved {
		for field, supplied := range approvedOnly {
			if supplied {
				verr.Add(field, approvedOnlyMessage)
			}
		}
	} else {
		s.applyApprovedFields(&updated, input, verr)
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errNotSignedUp
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if updated.IsApproved {
		s.index(ctx, &updated)
	}

	return &profileDto.ProfileResponse{Status: updated.Status(), Profile: &updated}, nil
}

func (s *profileService) applyApprovedFields(updated *entity.AlumniProfile, input profileDto.UpdateProfileInput, verr *apperror.ValidationError) {
	if input.BatchStart != nil || input.BatchEnd != nil {
		if input.BatchStart == nil || input.BatchEnd == nil {
			verr.Add("batch_start", "Batch start and batch end must be given together")
		} else {
			batch := entity.BatchRange{Start: *input.BatchStart, End: *input.BatchEnd}
			if err := batch.Validate(s.now()); err != nil {
				verr.Add("batch_start", err.Error())
			} else {
				updated.BatchStart = batch.Start
				updated.BatchEnd = batch.End
			}
		}
	}

	if input.CurrentJob != nil {
		updated.CurrentJob = optional(strings.TrimSpace(*input.CurrentJob))
	}
	if input.Company != nil {
		updated.Company = optional(strings.TrimSpace(*input.Company))
	}
	if input.City != nil {
		updated.City = optional(strings.TrimSpace(*input.City))
	}
	if input.State != nil {
		updated.State = optional(strings.TrimSpace(*input.State))
	}

	links := []struct {
		field string
		value *string
		dest  **string
	}{
		{"linkedin_url", input.LinkedInURL, &updated.LinkedInURL},
		{"twitter_url", input.TwitterURL, &updated.TwitterURL},
		{"instagram_url", input.InstagramURL, &updated.InstagramURL},
		{"facebook_url", input.FacebookURL, &updated.FacebookURL},
	}
	for _, link := range links {
		if link.value == nil {
			continue
		}
		value := strings.TrimSpace(*link.value)
		if value != "" && s.validate.Var(value, "http_url") != nil {
			verr.Add(link.field, "must be a valid http(s) URL")
			continue
		}
		*link.dest = optional(value)
	}
}

func (s *profileService) UploadPhoto(ctx context.Context, userID uuid.UUID, photo *commonDto.PhotoFile) (*profileDto.ProfileResponse, error) {
	if photo == nil || photo.Reader == nil {
		return nil, validationError("photo", "Photo is required")
	}
	if photo.Size > MaxPhotoSize {
		return nil, validationError("photo", "Photo must be 5 MB or smaller")
	}
	if !storage.AllowedImageExtensions[strings.ToLower(filepath.Ext(photo.FileName))] {
		return nil, validationError("photo", "Photo must be a JPG, PNG, GIF, WEBP or HEIC image")
	}
	if s.imageStorage == nil {
		return nil, apperror.New(http.StatusServiceUnavailable, "photo uploads are not available right now", apperror.ErrRemoteService)
	}

	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.imageStorage.UploadImage(ctx, photo.Reader, s.photoFolder, photo.FileName)
	if err != nil {
		logger.Error().Err(err).Str("profile_id", profile.ID.String()).Msg("photo upload failed")
		return nil, apperror.Wrap(fmt.Errorf("%w: %v", apperror.ErrRemoteService, err), "could not upload the photo, please try again")
	}

	previous := profile.PhotoURL
	profile.PhotoURL = &url
	if err := s.repo.Update(ctx, profile); err != nil {
		if delErr := s.imageStorage.DeleteImage(ctx, url); delErr != nil {
			logger.Warn().Err(delErr).Str("url", url).Msg("failed to delete uploaded photo after save error")
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errNotSignedUp
		}
		return nil, fmt.Errorf("save photo: %w", err)
	}

	if previous != nil && *previous != "" {
		if err := s.imageStorage.DeleteImage(ctx, *previous); err != nil {
			logger.Warn().Err(err).Str("url", *previous).Msg("failed to delete previous photo")
		}
	}

	if profile.IsApproved {
		s.index(ctx, profile)
	}

	return &profileDto.ProfileResponse{Status: profile.Status(), Profile: profile}, nil
}

var errNotSignedUp = apperror.New(http.StatusNotFound, "you have not signed up yet", apperror.ErrNotFound)

func (s *profileService) load(ctx context.Context, userID uuid.UUID) (*entity.AlumniProfile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errNotSignedUp
		}
		return nil, err
	}
	return profile, nil
}

func (s *profileService) index(ctx context.Context, profile *entity.AlumniProfile) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexProfile(ctx, profile); err != nil {
		logger.Warn().Err(err).Str("profile_id", profile.ID.String()).Msg("failed to re-index profile")
	}
}

func validationError(field, message string) error {
	v := apperror.NewValidationError()
	v.Add(field, message)
	return v
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
