// Copyright 2025 James Ross
package markdowngen

import (
	"strings"

	"github.com/content-forge/pipeline/internal/models"
)

// Render produces the full Markdown document for an article: YAML
// frontmatter followed by the body verbatim.
//
// Whitespace is load-bearing here (spec.md §4.6): every emitted field
// ends with its own newline, and an omitted optional field is simply
// not written rather than collapsed — it must never cause the next
// field to land on the previous field's line. Do not refactor this into
// a single strings.Join/TrimSpace pass; that is exactly the bug spec.md
// calls out.
func Render(article models.ProcessedArticle) string {
	var b strings.Builder
	b.WriteString("---\n")
	writeField(&b, "title", yamlQuote(article.Title))
	writeField(&b, "date", article.ProcessedAt.Format("2006-01-02T15:04:05Z07:00"))
	writeField(&b, "source", string(article.Source))
	writeField(&b, "source_url", yamlQuote(article.OriginalURL))
	writeField(&b, "slug", article.Slug)
	writeTagsField(&b, article.Tags)
	if article.CoverImage != "" {
		b.WriteString("cover:\n")
		writeIndentedField(&b, "image", yamlQuote(article.CoverImage))
		if article.CoverCaption != "" {
			writeIndentedField(&b, "caption", yamlQuote(article.CoverCaption))
		}
	}
	b.WriteString("---\n\n")
	b.WriteString(article.Content)
	if !strings.HasSuffix(article.Content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeIndentedField(b *strings.Builder, key, value string) {
	b.WriteString("  ")
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeTagsField(b *strings.Builder, tags []string) {
	if len(tags) == 0 {
		b.WriteString("tags: []\n")
		return
	}
	b.WriteString("tags:\n")
	for _, t := range tags {
		b.WriteString("  - ")
		b.WriteString(yamlQuote(t))
		b.WriteString("\n")
	}
}

// yamlQuote double-quotes a scalar and escapes embedded quotes/backslashes,
// so titles or URLs containing colons or quotes cannot corrupt the
// surrounding YAML document.
func yamlQuote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
