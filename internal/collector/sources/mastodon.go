// Copyright 2025 James Ross
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/ratelimit"
)

// MastodonReader reads a public timeline endpoint
// (e.g. https://mastodon.social/api/v1/timelines/public).
type MastodonReader struct {
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Breaker    *breaker.CircuitBreaker
}

func (r *MastodonReader) Source() models.Source { return models.SourceMastodon }

type mastodonStatus struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	URL              string `json:"url"`
	FavouritesCount  int    `json:"favourites_count"`
	ReblogsCount     int    `json:"reblogs_count"`
	Account          struct {
		Acct string `json:"acct"`
	} `json:"account"`
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func (r *MastodonReader) Stream(ctx context.Context, endpoint string, params map[string]any, maxItems int) (<-chan RawRecord, <-chan error) {
	out := make(chan RawRecord)
	errc := make(chan error, 1)
	maxItems = clampMaxItems(maxItems)

	go func() {
		defer close(out)
		defer close(errc)

		if r.Breaker != nil && !r.Breaker.Allow() {
			errc <- fmt.Errorf("mastodon: circuit breaker open")
			return
		}
		if r.Limiter != nil {
			if err := r.Limiter.Acquire(ctx, "mastodon"); err != nil {
				errc <- err
				return
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			errc <- err
			return
		}

		resp, err := r.HTTPClient.Do(req)
		if err != nil {
			r.recordOutcome(false)
			errc <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			r.recordOutcome(false)
			if r.Limiter != nil {
				r.Limiter.NoteThrottled("mastodon", 0)
			}
			errc <- fmt.Errorf("mastodon: throttled (429)")
			return
		}
		if resp.StatusCode != http.StatusOK {
			r.recordOutcome(false)
			errc <- fmt.Errorf("mastodon: unexpected status %d", resp.StatusCode)
			return
		}
		r.recordOutcome(true)
		if r.Limiter != nil {
			r.Limiter.NoteSuccess("mastodon")
		}

		var statuses []mastodonStatus
		if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
			errc <- err
			return
		}

		sent := 0
		for _, s := range statuses {
			if sent >= maxItems {
				return
			}
			plain := htmlTagPattern.ReplaceAllString(s.Content, " ")
			select {
			case <-ctx.Done():
				return
			case out <- RawRecord{Fields: map[string]any{
				"id":         s.ID,
				"title":      firstSentence(plain),
				"content":    plain,
				"source_url": s.URL,
				"boosts":     s.ReblogsCount,
				"favourites": s.FavouritesCount,
			}}:
				sent++
			}
		}
	}()

	return out, errc
}

func (r *MastodonReader) recordOutcome(ok bool) {
	if r.Breaker != nil {
		r.Breaker.Record(ok)
	}
}

// firstSentence derives a title from the first 80 characters of a
// Mastodon post's plain-text body, since statuses carry no title field.
func firstSentence(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max]
}
