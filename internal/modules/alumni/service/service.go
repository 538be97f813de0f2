package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/internal/modules/alumni/dto"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	searchService "anoa.com/alumnidirectory/internal/modules/search/service"
	"anoa.com/alumnidirectory/pkg/apperror"
	commonDto "anoa.com/alumnidirectory/pkg/dto"
	"anoa.com/alumnidirectory/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type AlumniService interface {
	List(ctx context.Context, requester dto.Requester, query dto.ListQuery) (*dto.ListResponse, error)
	Get(ctx context.Context, requester dto.Requester, id uuid.UUID) (*entity.AlumniProfile, error)
	Search(ctx context.Context, requester dto.Requester, query dto.SearchQuery) (*dto.SearchResponse, error)
	Stats(ctx context.Context, requester dto.Requester) (*dto.StatsResponse, error)
}

type alumniService struct {
	repo   alumniRepo.AlumniRepository
	admins *access.AdminSet
	search searchService.AlumniSearchService
}

// NewAlumniService falls back to SQL search when search is nil.
func NewAlumniService(repo alumniRepo.AlumniRepository, admins *access.AdminSet, search searchService.AlumniSearchService) AlumniService {
	return &alumniService{
		repo:   repo,
		admins: admins,
		search: search,
	}
}

// canBrowse is true for admins and approved alumni only.
func (s *alumniService) canBrowse(ctx context.Context, requester dto.Requester) (bool, error) {
	if s.admins.IsAdmin(requester.Email) {
		return true, nil
	}
	profile, err := s.repo.FindByUserID(ctx, requester.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsApproved, nil
}

func (s *alumniService) List(ctx context.Context, requester dto.Requester, query dto.ListQuery) (*dto.ListResponse, error) {
	page, limit := normalizePage(query.Page, query.Limit)

	allowed, err := s.canBrowse(ctx, requester)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &dto.ListResponse{
			Data:       []*entity.AlumniProfile{},
			Meta:       commonDto.NewPaginationMeta(page, limit, 0),
			Restricted: true,
		}, nil
	}

	batch, err := parseBatchFilter(query.Batch)
	if err != nil {
		return nil, err
	}

	profiles, total, err := s.repo.ListApproved(ctx, alumniRepo.Filter{
		Batch:  batch,
		Search: strings.TrimSpace(query.Search),
		City:   strings.TrimSpace(query.City),
		SortBy: query.SortBy,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*entity.AlumniProfile{}
	}

	return &dto.ListResponse{
		Data: profiles,
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}

func (s *alumniService) Get(ctx context.Context, requester dto.Requester, id uuid.UUID) (*entity.AlumniProfile, error) {
	notFound := apperror.New(http.StatusNotFound, "alumni not found", apperror.ErrNotFound)

	profile, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	if profile.UserID == requester.UserID {
		return profile, nil
	}
	if s.admins.IsAdmin(requester.Email) {
		return profile, nil
	}
	if !profile.IsApproved {
		return nil, notFound
	}

	allowed, err := s.canBrowse(ctx, requester)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, notFound
	}
	return profile, nil
}

func (s *alumniService) Search(ctx context.Context, requester dto.Requester, query dto.SearchQuery) (*dto.SearchResponse, error) {
	page, limit := normalizePage(query.Page, query.Limit)

	allowed, err := s.canBrowse(ctx, requester)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &dto.SearchResponse{
			Hits:       []searchService.AlumniDocument{},
			Meta:       commonDto.NewPaginationMeta(page, limit, 0),
			Restricted: true,
		}, nil
	}

	batch, err := parseBatchFilter(query.Batch)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		result, err := s.search.Search(ctx, strings.TrimSpace(query.Query), batch, (page-1)*limit, limit)
		if err == nil {
			hits := result.Hits
			if hits == nil {
				hits = []searchService.AlumniDocument{}
			}
			return &dto.SearchResponse{Hits: hits, Meta: commonDto.NewPaginationMeta(page, limit, result.Total)}, nil
		}
		logger.Warn().Err(err).Msg("meilisearch query failed, falling back to database search")
	}

	profiles, total, err := s.repo.ListApproved(ctx, alumniRepo.Filter{
		Batch:  batch,
		Search: strings.TrimSpace(query.Query),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]searchService.AlumniDocument, 0, len(profiles))
	for _, p := range profiles {
		hits = append(hits, searchService.DocumentFromProfile(p))
	}
	return &dto.SearchResponse{Hits: hits, Meta: commonDto.NewPaginationMeta(page, limit, total)}, nil
}

func (s *alumniService) Stats(ctx context.Context, requester dto.Requester) (*dto.StatsResponse, error) {
	approved, pending, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byBatch, err := s.repo.CountApprovedByBatch(ctx)
	if err != nil {
		return nil, err
	}
	if byBatch == nil {
		byBatch = []alumniRepo.BatchCount{}
	}

	res := &dto.StatsResponse{Approved: approved, ByBatch: byBatch}
	if s.admins.IsAdmin(requester.Email) {
		res.Pending = &pending
	}
	return res, nil
}

func parseBatchFilter(raw string) (*entity.BatchRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	batch, err := entity.ParseBatchRange(raw)
	if err != nil {
		v := apperror.NewValidationError()
		v.Add("batch", err.Error())
		return nil, v
	}
	return &batch, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
