package dto

import (
	"anoa.com/alumnidirectory/internal/entity"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	searchService "anoa.com/alumnidirectory/internal/modules/search/service"
	commonDto "anoa.com/alumnidirectory/pkg/dto"
	"github.com/google/uuid"
)

// Requester is the signed-in identity asking for directory data.
type Requester struct {
	UserID uuid.UUID
	Email  string
}

type ListQuery struct {
	Batch  string `form:"batch" binding:"omitempty,max=9"`
	Search string `form:"search" binding:"omitempty,max=100"`
	City   string `form:"city" binding:"omitempty,max=100"`
	SortBy string `form:"sort_by" binding:"omitempty,oneof=name batch newest"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type SearchQuery struct {
	Query string `form:"q" binding:"omitempty,max=100"`
	Batch string `form:"batch" binding:"omitempty,max=9"`
	Page  int    `form:"page" binding:"omitempty,min=1"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// ListResponse is empty with Restricted set when the requester may not browse yet.
type ListResponse struct {
	Data       []*entity.AlumniProfile  `json:"data"`
	Meta       commonDto.PaginationMeta `json:"meta"`
	Restricted bool                     `json:"restricted"`
}

type SearchResponse struct {
	Hits       []searchService.AlumniDocument `json:"hits"`
	Meta       commonDto.PaginationMeta       `json:"meta"`
	Restricted bool                           `json:"restricted"`
}

type StatsResponse struct {
	Approved int64                   `json:"approved"`
	Pending  *int64                  `json:"pending,omitempty"`
	ByBatch  []alumniRepo.BatchCount `json:"by_batch"`
}
