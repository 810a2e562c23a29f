// Copyright 2025 James Ross
package collector

import (
	"strings"

	"github.com/content-forge/pipeline/internal/models"
)

// technicalKeywords is the curated keyword set used by strict-mode
// relevance checks.
var technicalKeywords = []string{
	"software", "programming", "code", "api", "database", "golang", "python",
	"javascript", "rust", "kubernetes", "docker", "linux", "open source",
	"algorithm", "compiler", "framework", "security", "cloud", "machine learning",
}

// QualityResult is the outcome of the quality gate for one item.
type QualityResult struct {
	Pass   bool
	Reason string
}

// ValidateItem checks required fields are present and typed correctly.
func ValidateItem(item models.CollectionItem) QualityResult {
	if item.ID == "" {
		return QualityResult{false, "missing_id"}
	}
	if item.Title == "" {
		return QualityResult{false, "missing_title"}
	}
	if item.ContentHash == "" {
		return QualityResult{false, "missing_content_hash"}
	}
	return QualityResult{true, ""}
}

// CheckReadability enforces minimum title/body lengths.
func CheckReadability(item models.CollectionItem) QualityResult {
	if len(item.Title) < 10 {
		return QualityResult{false, "title_too_short"}
	}
	if len(item.Content) < 100 {
		return QualityResult{false, "body_too_short"}
	}
	return QualityResult{true, ""}
}

// CheckTechnicalRelevance requires a curated keyword in strict mode and
// is a no-op in permissive mode.
func CheckTechnicalRelevance(item models.CollectionItem, strict bool) QualityResult {
	if !strict {
		return QualityResult{true, ""}
	}
	haystack := strings.ToLower(item.Title + " " + item.Content)
	for _, kw := range technicalKeywords {
		if strings.Contains(haystack, kw) {
			return QualityResult{true, ""}
		}
	}
	return QualityResult{false, "not_technically_relevant"}
}

// Gate runs the full quality gate. Rejections are counted per-reason by
// the caller; Gate itself is pure and stateless.
func Gate(item models.CollectionItem, strict bool) QualityResult {
	if r := ValidateItem(item); !r.Pass {
		return r
	}
	if r := CheckReadability(item); !r.Pass {
		return r
	}
	if r := CheckTechnicalRelevance(item, strict); !r.Pass {
		return r
	}
	return QualityResult{true, ""}
}
