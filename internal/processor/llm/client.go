// Copyright 2025 James Ross
package llm

import (
	"context"
	"errors"
)

// RewriteRequest carries the inputs of spec.md §4.4 step 3's rewrite
// prompt: title, source, and the standardised content body.
type RewriteRequest struct {
	Title   string
	Source  string
	Content string
}

// RewriteResponse is the LLM's rewritten article plus usage accounting
// for ProcessedArticle.Costs.
type RewriteResponse struct {
	Content    string
	Tokens     int
	CostUSD    float64
	Model      string
}

// TitleRequest asks the LLM to propose a replacement title when the
// cleaned title is long or carries placeholder markers.
type TitleRequest struct {
	CleanedTitle string
	Content      string
}

type TitleResponse struct {
	Title   string
	Tokens  int
	CostUSD float64
	Model   string
}

// ErrThrottled is returned by Client implementations on a 429 or
// equivalent provider throttling response, so callers can branch to
// ratelimit.Limiter.NoteThrottled without the caller knowing the
// provider's HTTP status vocabulary.
var ErrThrottled = errors.New("llm: throttled")

// Client is the LLM provider contract. The provider SDK itself is out
// of scope (spec.md §1 Non-goals); this interface keeps the concrete
// HTTP adapter swappable and lets tests use a fake.
type Client interface {
	Rewrite(ctx context.Context, req RewriteRequest) (RewriteResponse, error)
	RewriteTitle(ctx context.Context, req TitleRequest) (TitleResponse, error)
}
