// Copyright 2025 James Ross
package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses every run of non-alphanumeric
// characters to a single hyphen, and trims leading/trailing hyphens.
// Same input on the same date MUST yield the same slug (spec.md §4.4
// step 5's determinism requirement) — this function has no hidden state.
func Slugify(title string) string {
	lower := strings.ToLower(title)
	slug := nonAlphanumeric.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// URL builds the public article path for a given collection date and slug.
func URL(date time.Time, slug string) string {
	return fmt.Sprintf("/%04d/%02d/%s", date.Year(), date.Month(), slug)
}

// Filename builds the markdown filename for a given collection date and slug.
func Filename(date time.Time, slug string) string {
	return fmt.Sprintf("%04d%02d%02d-%s.md", date.Year(), date.Month(), date.Day(), slug)
}

// DisambiguateSlug appends a short hash suffix derived from topicID, for
// the slug-collision case of spec.md §4.4 S2: two topics that produce
// the same slug on the same day. The suffix is deterministic so retries
// of the same topic still land on the same disambiguated slug.
func DisambiguateSlug(slug, topicID string) string {
	sum := sha256.Sum256([]byte(topicID))
	return fmt.Sprintf("%s-%s", slug, hex.EncodeToString(sum[:])[:8])
}
