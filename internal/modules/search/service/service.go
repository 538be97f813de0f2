package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/pkg/logger"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const alumniIndex = "alumni"

// AlumniDocument is the searchable projection of an approved profile.
type AlumniDocument struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	RollNumber string `json:"roll_number,omitempty"`
	BatchStart int    `json:"batch_start"`
	BatchEnd   int    `json:"batch_end"`
	Bio        string `json:"bio,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	CurrentJob string `json:"current_job,omitempty"`
	Company    string `json:"company,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	ApprovedAt int64  `json:"approved_at"`
}

type SearchResult struct {
	Hits  []AlumniDocument `json:"hits"`
	Total int64            `json:"total"`
}

type AlumniSearchService interface {
	// IndexProfile upserts approved profiles; unapproved ones are ignored.
	IndexProfile(ctx context.Context, profile *entity.AlumniProfile) error
	Search(ctx context.Context, query string, batch *entity.BatchRange, offset, limit int) (*SearchResult, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewAlumniSearchService(client meilisearch.ServiceManager) AlumniSearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *meiliSearchService) initIndex() {
	filterable := []string{"batch_start", "batch_end", "city"}
	filterableInterface := make([]any, len(filterable))
	for i, v := range filterable {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(alumniIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		logger.Warn().Err(err).Msg("failed to update alumni filterable attributes")
	}

	sortable := []string{"full_name", "batch_start", "approved_at"}
	if _, err := s.client.Index(alumniIndex).UpdateSortableAttributes(&sortable); err != nil {
		logger.Warn().Err(err).Msg("failed to update alumni sortable attributes")
	}

	logger.Info().Str("index", alumniIndex).Msg("meilisearch index initialized")
}

func (s *meiliSearchService) IndexProfile(ctx context.Context, profile *entity.AlumniProfile) error {
	if profile == nil || !profile.IsApproved {
		return nil
	}

	doc := buildDocument(profile, s.cleanText)
	task, err := s.client.Index(alumniIndex).AddDocuments([]AlumniDocument{doc}, strPtr("id"))
	if err != nil {
		return err
	}
	logger.Debug().Str("profile_id", doc.ID).Int64("task_uid", task.TaskUID).Msg("indexed alumni profile")
	return nil
}

func (s *meiliSearchService) Search(ctx context.Context, query string, batch *entity.BatchRange, offset, limit int) (*SearchResult, error) {
	request := &meilisearch.SearchRequest{
		Offset: int64(offset),
		Limit:  int64(limit),
	}
	if filter := batchFilter(batch); filter != "" {
		request.Filter = filter
	}

	raw, err := s.client.Index(alumniIndex).SearchRaw(query, request)
	if err != nil {
		return nil, err
	}

	var body struct {
		Hits               []AlumniDocument `json:"hits"`
		EstimatedTotalHits int64            `json:"estimatedTotalHits"`
	}
	if err := json.Unmarshal(*raw, &body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &SearchResult{Hits: body.Hits, Total: body.EstimatedTotalHits}, nil
}

func (s *meiliSearchService) cleanText(content string) string {
	return cleanText(s.sanitizer, content)
}

func cleanText(policy *bluemonday.Policy, content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	cleaned := html.UnescapeString(policy.Sanitize(content))
	return strings.Join(strings.Fields(cleaned), " ")
}

var documentSanitizer = bluemonday.StrictPolicy()

// DocumentFromProfile builds the same projection that is indexed.
func DocumentFromProfile(profile *entity.AlumniProfile) AlumniDocument {
	return buildDocument(profile, func(content string) string {
		return cleanText(documentSanitizer, content)
	})
}

func buildDocument(profile *entity.AlumniProfile, clean func(string) string) AlumniDocument {
	doc := AlumniDocument{
		ID:         profile.ID.String(),
		FullName:   profile.FullName,
		RollNumber: stringOrEmpty(profile.RollNumber),
		BatchStart: profile.BatchStart,
		BatchEnd:   profile.BatchEnd,
		Bio:        clean(stringOrEmpty(profile.Bio)),
		PhotoURL:   stringOrEmpty(profile.PhotoURL),
		CurrentJob: stringOrEmpty(profile.CurrentJob),
		Company:    stringOrEmpty(profile.Company),
		City:       stringOrEmpty(profile.City),
		State:      stringOrEmpty(profile.State),
	}
	if profile.ApprovedAt != nil {
		doc.ApprovedAt = profile.ApprovedAt.Unix()
	}
	return doc
}

// batchFilter matches both years exactly.
func batchFilter(batch *entity.BatchRange) string {
	if batch == nil || batch.IsZero() {
		return ""
	}
	return fmt.Sprintf("batch_start = %d AND batch_end = %d", batch.Start, batch.End)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	return &s
}
