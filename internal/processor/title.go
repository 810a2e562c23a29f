// Copyright 2025 James Ross
package processor

import (
	"regexp"
	"strings"
)

// datePrefixPattern strips leading parenthetical date stamps like
// "(15 Oct)" or "(2024-10-08)" that source feeds sometimes prepend.
var datePrefixPattern = regexp.MustCompile(`^\([^)]*\)\s*`)

var placeholderMarkers = []string{
	"[title]", "tbd", "untitled", "placeholder", "lorem ipsum", "todo", "xxx",
}

const titleRewriteThreshold = 80

// CleanTitle strips date prefixes and trims whitespace.
func CleanTitle(title string) string {
	cleaned := datePrefixPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(cleaned)
}

// NeedsRewrite reports whether a cleaned title is long enough or carries
// a placeholder marker, per spec.md §4.4 step 4: short, marker-free
// titles are kept as-is with zero AI cost.
func NeedsRewrite(cleaned string) bool {
	if len(cleaned) >= titleRewriteThreshold {
		return true
	}
	lower := strings.ToLower(cleaned)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
