// Copyright 2025 James Ross
package sources

import (
	"time"

	"github.com/content-forge/pipeline/internal/models"
)

// Standardise turns a RawRecord into a models.CollectionItem. Per
// spec.md §4.5 this must be total — it never errors or panics, it just
// produces the best CollectionItem it can from whatever fields are
// present — and it computes ContentHash last, after every other field
// has been set.
func Standardise(source models.Source, raw RawRecord) models.CollectionItem {
	item := models.CollectionItem{
		ID:          raw.str("id"),
		Title:       raw.str("title"),
		Content:     raw.str("content"),
		Source:      source,
		SourceURL:   raw.str("source_url"),
		CollectedAt: time.Now().UTC(),
		Subreddit:   raw.str("subreddit"),
		Upvotes:     raw.integer("upvotes"),
		Comments:    raw.integer("comments"),
		Boosts:      raw.integer("boosts"),
		Favourites:  raw.integer("favourites"),
		CreatedUTC:  int64(raw.integer("created_utc")),
	}
	item.ContentHash = models.ContentHash(item.Title, item.Content)
	return item
}
