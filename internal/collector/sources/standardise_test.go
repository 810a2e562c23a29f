// Copyright 2025 James Ross
package sources

import (
	"testing"

	"github.com/content-forge/pipeline/internal/models"
)

func TestStandardiseIsTotalAndComputesHashLast(t *testing.T) {
	raw := RawRecord{Fields: map[string]any{
		"id":      "abc123",
		"title":   "Hello World",
		"content": "Some body text",
		"upvotes": 42,
	}}
	item := Standardise(models.SourceReddit, raw)
	if item.ID != "abc123" || item.Title != "Hello World" {
		t.Fatalf("unexpected item: %+v", item)
	}
	want := models.ContentHash(item.Title, item.Content)
	if item.ContentHash != want {
		t.Fatalf("expected content hash %q, got %q", want, item.ContentHash)
	}
}

func TestStandardiseNeverPanicsOnEmptyRecord(t *testing.T) {
	item := Standardise(models.SourceRSS, RawRecord{Fields: map[string]any{}})
	if item.Source != models.SourceRSS {
		t.Fatalf("expected source preserved even for an empty record")
	}
	if item.ContentHash == "" {
		t.Fatalf("expected a content hash even for empty title/content")
	}
}
