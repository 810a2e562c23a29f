// Copyright 2025 James Ross
package processor

import "strings"

// tagKeywords is the same curated technical-topic vocabulary the
// collector's quality gate checks for relevance; here it doubles as a
// tag extractor since spec.md §6 requires a `tags` frontmatter list but
// leaves its derivation unspecified.
var tagKeywords = []string{
	"golang", "python", "javascript", "rust", "kubernetes", "docker",
	"linux", "open source", "security", "cloud", "machine learning",
	"database", "api", "compiler", "framework", "algorithm",
}

// ExtractTags returns every tagKeywords entry found in title or content,
// lowercased and in keyword order, capped at 5 to keep frontmatter
// readable.
func ExtractTags(title, content string) []string {
	haystack := strings.ToLower(title + " " + content)
	var tags []string
	for _, kw := range tagKeywords {
		if strings.Contains(haystack, kw) {
			tags = append(tags, kw)
			if len(tags) == 5 {
				break
			}
		}
	}
	return tags
}
