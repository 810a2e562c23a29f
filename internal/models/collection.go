// Copyright 2025 James Ross
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source identifies where a CollectionItem originated.
type Source string

const (
	SourceReddit   Source = "reddit"
	SourceMastodon Source = "mastodon"
	SourceRSS      Source = "rss"
)

// CollectionItem is the source-neutral record produced by a Collector
// source reader after standardisation.
type CollectionItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      Source    `json:"source"`
	SourceURL   string    `json:"source_url"`
	CollectedAt time.Time `json:"collected_at"`
	ContentHash string    `json:"content_hash"`

	// Optional, per-source extras. Left zero-valued when not applicable.
	Subreddit   string `json:"subreddit,omitempty"`
	Upvotes     int    `json:"upvotes,omitempty"`
	Comments    int    `json:"comments,omitempty"`
	Boosts      int    `json:"boosts,omitempty"`
	Favourites  int    `json:"favourites,omitempty"`
	CreatedUTC  int64  `json:"created_utc,omitempty"`
}

// ContentHash computes the SHA-256 of title+content, matching the
// dedup witness invariant: byte-identical (title, content) must yield an
// identical hash regardless of any other field.
func ContentHash(title, content string) string {
	sum := sha256.Sum256([]byte(title + content))
	return hex.EncodeToString(sum[:])
}

// Stats summarises one Collector pipeline run.
type Stats struct {
	Collected       int `json:"collected"`
	Published       int `json:"published"`
	RejectedQuality int `json:"rejected_quality"`
	RejectedDedup   int `json:"rejected_dedup"`
}

// SourceConfig is one entry of a source template, either loaded from
// the collector.sources list in the YAML config or decoded from a Q1
// wake_up payload's "sources" field, per spec.md §4.5.
type SourceConfig struct {
	SourceType  Source         `json:"source_type" mapstructure:"source_type"`
	Parameters  map[string]any `json:"parameters" mapstructure:"parameters"`
	MaxItems    int            `json:"max_items" mapstructure:"max_items"`
	QualityMode string         `json:"quality_mode" mapstructure:"quality_mode"` // "strict" | "permissive"
}

// Collection is the append-only audit record for one Collector run.
type Collection struct {
	CollectionID string           `json:"collection_id"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      time.Time        `json:"ended_at"`
	SourceConfigs []SourceConfig  `json:"source_configs"`
	Items        []CollectionItem `json:"items"`
	Stats        Stats            `json:"stats"`
}

// SeenRecord is the dedup witness stored at seen/{yyyy}/{mm}/{dd}/{hash}.json.
type SeenRecord struct {
	ContentHash string    `json:"content_hash"`
	SeenAt      time.Time `json:"seen_at"`
	Source      Source    `json:"source"`
}
