// Copyright 2025 James Ross
package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/ratelimit"
)

// RSSReader reads an RSS/Atom feed URL. Entry bodies often embed raw
// HTML; cleanContent strips that down to plain text with goquery rather
// than shipping markup into the dedup/quality-gate pipeline.
type RSSReader struct {
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Breaker    *breaker.CircuitBreaker
}

func (r *RSSReader) Source() models.Source { return models.SourceRSS }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// Atom fallback
	Entries []rssItem `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Summary     string `xml:"summary"`
	Content     string `xml:"encoded"`
	GUID        string `xml:"guid"`
	ID          string `xml:"id"`
}

func (r *RSSReader) Stream(ctx context.Context, endpoint string, params map[string]any, maxItems int) (<-chan RawRecord, <-chan error) {
	out := make(chan RawRecord)
	errc := make(chan error, 1)
	maxItems = clampMaxItems(maxItems)

	go func() {
		defer close(out)
		defer close(errc)

		if r.Breaker != nil && !r.Breaker.Allow() {
			errc <- fmt.Errorf("rss: circuit breaker open")
			return
		}
		if r.Limiter != nil {
			if err := r.Limiter.Acquire(ctx, "rss"); err != nil {
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

		if resp.StatusCode != http.StatusOK {
			r.recordOutcome(false)
			errc <- fmt.Errorf("rss: unexpected status %d", resp.StatusCode)
			return
		}
		r.recordOutcome(true)
		if r.Limiter != nil {
			r.Limiter.NoteSuccess("rss")
		}

		var feed rssFeed
		if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
			errc <- err
			return
		}

		items := feed.Channel.Items
		if len(items) == 0 {
			items = feed.Entries
		}

		sent := 0
		for _, it := range items {
			if sent >= maxItems {
				return
			}
			body := it.Content
			if body == "" {
				body = it.Description
			}
			if body == "" {
				body = it.Summary
			}
			id := it.GUID
			if id == "" {
				id = it.ID
			}
			if id == "" {
				id = it.Link
			}
			select {
			case <-ctx.Done():
				return
			case out <- RawRecord{Fields: map[string]any{
				"id":         id,
				"title":      strings.TrimSpace(it.Title),
				"content":    cleanContent(body),
				"source_url": it.Link,
			}}:
				sent++
			}
		}
	}()

	return out, errc
}

func (r *RSSReader) recordOutcome(ok bool) {
	if r.Breaker != nil {
		r.Breaker.Record(ok)
	}
}

// cleanContent strips embedded HTML markup from a feed entry's body,
// falling back to the raw string if it doesn't parse as HTML.
func cleanContent(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return strings.TrimSpace(raw)
	}
	return text
}
