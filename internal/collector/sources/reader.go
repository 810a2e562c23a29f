// Copyright 2025 James Ross
package sources

import (
	"context"
	"time"

	"github.com/content-forge/pipeline/internal/models"
)

// RawRecord is one unparsed item pulled from a source, still in the
// source's own shape. Standardise turns it into a models.CollectionItem.
type RawRecord struct {
	Fields map[string]any
}

func (r RawRecord) str(key string) string {
	if v, ok := r.Fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (r RawRecord) integer(key string) int {
	switch v := r.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Reader is the per-source reader contract of spec.md §4.5: a lazy
// sequence of raw records, fed to Standardise. Implementations never
// scrape HTML pages directly — only structured JSON/XML endpoints.
type Reader interface {
	Source() models.Source
	// Stream reads up to maxItems raw records from endpoint, gated by
	// the reader's own Limiter and Breaker fields rather than by its
	// http client. The returned channels are closed when the
	// read is complete; at most one error is ever sent before closure.
	Stream(ctx context.Context, endpoint string, params map[string]any, maxItems int) (<-chan RawRecord, <-chan error)
}

// clampMaxItems guards against a non-positive or absurd max_items value
// in a source template.
func clampMaxItems(n int) int {
	if n <= 0 {
		return 25
	}
	if n > 500 {
		return 500
	}
	return n
}

func parseUnixOrRFC3339(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Now().UTC()
}
