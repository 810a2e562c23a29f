// Copyright 2025 James Ross
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/ratelimit"
)

// RedditReader reads a subreddit JSON listing (e.g.
// https://www.reddit.com/r/golang/top.json), never scraping HTML.
type RedditReader struct {
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Breaker    *breaker.CircuitBreaker
}

func (r *RedditReader) Source() models.Source { return models.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Ups         int     `json:"ups"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Permalink   string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *RedditReader) Stream(ctx context.Context, endpoint string, params map[string]any, maxItems int) (<-chan RawRecord, <-chan error) {
	out := make(chan RawRecord)
	errc := make(chan error, 1)
	maxItems = clampMaxItems(maxItems)

	go func() {
		defer close(out)
		defer close(errc)

		if r.Breaker != nil && !r.Breaker.Allow() {
			errc <- fmt.Errorf("reddit: circuit breaker open")
			return
		}
		if r.Limiter != nil {
			if err := r.Limiter.Acquire(ctx, "reddit"); err != nil {
				errc <- err
				return
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			errc <- err
			return
		}
		req.Header.Set("User-Agent", "content-forge-pipeline/1.0")

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
				r.Limiter.NoteThrottled("reddit", retryAfter(resp))
			}
			errc <- fmt.Errorf("reddit: throttled (429)")
			return
		}
		if resp.StatusCode != http.StatusOK {
			r.recordOutcome(false)
			errc <- fmt.Errorf("reddit: unexpected status %d", resp.StatusCode)
			return
		}
		r.recordOutcome(true)
		if r.Limiter != nil {
			r.Limiter.NoteSuccess("reddit")
		}

		var listing redditListing
		if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
			errc <- err
			return
		}

		sent := 0
		for _, child := range listing.Data.Children {
			if sent >= maxItems {
				return
			}
			d := child.Data
			select {
			case <-ctx.Done():
				return
			case out <- RawRecord{Fields: map[string]any{
				"id":           d.ID,
				"title":        d.Title,
				"content":      d.Selftext,
				"source_url":   "https://reddit.com" + d.Permalink,
				"subreddit":    d.Subreddit,
				"upvotes":      d.Ups,
				"comments":     d.NumComments,
				"created_utc":  int(d.CreatedUTC),
			}}:
				sent++
			}
		}
	}()

	return out, errc
}

func (r *RedditReader) recordOutcome(ok bool) {
	if r.Breaker != nil {
		r.Breaker.Record(ok)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return 0
}
