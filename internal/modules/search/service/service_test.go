package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"anoa.com/alumnidirectory/internal/entity"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

func TestBatchFilter(t *testing.T) {
	if got := batchFilter(nil); got != "" {
		t.Fatalf("expected empty filter for nil batch, got %q", got)
	}
	if got := batchFilter(&entity.BatchRange{}); got != "" {
		t.Fatalf("expected empty filter for zero batch, got %q", got)
	}

	got := batchFilter(&entity.BatchRange{Start: 2017, End: 2022})
	want := "batch_start = 2017 AND batch_end = 2022"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildDocumentCleansBio(t *testing.T) {
	s := &meiliSearchService{sanitizer: bluemonday.StrictPolicy()}

	bio := "<p>Works on <b>rural</b> health</p><script>alert(1)</script>&amp; more"
	city := "Pune"
	approvedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	profile := &entity.AlumniProfile{
		ID:         uuid.New(),
		FullName:   "Asha Rao",
		BatchStart: 2015,
		BatchEnd:   2022,
		Bio:        &bio,
		City:       &city,
		IsApproved: true,
		ApprovedAt: &approvedAt,
	}

	doc := buildDocument(profile, s.cleanText)

	if doc.ID != profile.ID.String() {
		t.Fatalf("expected id %s, got %s", profile.ID, doc.ID)
	}
	if strings.Contains(doc.Bio, "<") || strings.Contains(doc.Bio, "alert") {
		t.Fatalf("expected markup stripped from bio, got %q", doc.Bio)
	}
	if doc.Bio != "Works on rural health & more" {
		t.Fatalf("unexpected cleaned bio %q", doc.Bio)
	}
	if doc.City != "Pune" || doc.ApprovedAt != approvedAt.Unix() {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.RollNumber != "" || doc.Company != "" {
		t.Fatalf("expected nil fields to be empty, got %+v", doc)
	}
}

func TestIndexProfileSkipsPending(t *testing.T) {
	s := &meiliSearchService{sanitizer: bluemonday.StrictPolicy()}

	// client is nil; reaching it would panic
	if err := s.IndexProfile(context.Background(), &entity.AlumniProfile{FullName: "Pending"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := s.IndexProfile(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
