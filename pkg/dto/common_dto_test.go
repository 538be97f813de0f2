package dto

import "testing"

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(2, 10, 21)
	if meta.TotalPages != 3 || meta.CurrentPage != 2 || meta.TotalItems != 21 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if NewPaginationMeta(1, 10, 0).TotalPages != 0 {
		t.Fatalf("empty result should have zero pages")
	}
}
