// Copyright 2025 James Ross
package collector

import (
	"testing"

	"github.com/content-forge/pipeline/internal/models"
)

func validItem() models.CollectionItem {
	return models.CollectionItem{
		ID:          "abc",
		Title:       "A Golang Concurrency Pattern",
		Content:     "This article discusses a software programming pattern used in Go concurrency, with more than one hundred characters of body text to satisfy the readability check.",
		ContentHash: "deadbeef",
	}
}

func TestGatePassesValidItem(t *testing.T) {
	if r := Gate(validItem(), true); !r.Pass {
		t.Fatalf("expected pass, got reason %q", r.Reason)
	}
}

func TestGateRejectsShortTitle(t *testing.T) {
	item := validItem()
	item.Title = "short"
	if r := Gate(item, false); r.Pass || r.Reason != "title_too_short" {
		t.Fatalf("expected title_too_short, got %+v", r)
	}
}

func TestGateRejectsShortBody(t *testing.T) {
	item := validItem()
	item.Content = "too short"
	if r := Gate(item, false); r.Pass || r.Reason != "body_too_short" {
		t.Fatalf("expected body_too_short, got %+v", r)
	}
}

func TestGateStrictModeRejectsIrrelevantContent(t *testing.T) {
	item := validItem()
	item.Title = "A Wonderful Recipe Book"
	item.Content = "This is a long description of how to bake bread with over one hundred characters of filler text here."
	if r := Gate(item, true); r.Pass {
		t.Fatalf("expected strict mode to reject non-technical content")
	}
	if r := Gate(item, false); !r.Pass {
		t.Fatalf("expected permissive mode to skip the relevance check")
	}
}

func TestGateRejectsMissingFields(t *testing.T) {
	item := validItem()
	item.ID = ""
	if r := Gate(item, false); r.Pass || r.Reason != "missing_id" {
		t.Fatalf("expected missing_id, got %+v", r)
	}
}
