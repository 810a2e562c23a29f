// Copyright 2025 James Ross
package models

import "time"

// LeaseRecord is the at-most-one coordination primitive stored at
// leases/{topic_id}.lease via conditional-create.
type LeaseRecord struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease is no longer valid at t.
func (l LeaseRecord) Expired(t time.Time) bool {
	return t.After(l.ExpiresAt)
}

// LockRecord is the at-most-once-per-batch publish trigger stored at
// locks/site-publish-{batch_id}.lock via conditional-create.
type LockRecord struct {
	BatchID  string    `json:"batch_id"`
	Holder   string    `json:"holder"`
	LockedAt time.Time `json:"locked_at"`
}

// Stale reports whether the lock has outlived the given age, meaning
// the replica that created it almost certainly crashed before the
// publish cycle it was guarding completed.
func (l LockRecord) Stale(t time.Time, maxAge time.Duration) bool {
	return t.Sub(l.LockedAt) > maxAge
}

// MarkdownFrontmatter is the set of YAML fields MarkdownGen emits above
// an article body, in the exact order spec.md §6 requires.
type MarkdownFrontmatter struct {
	Title        string
	Date         time.Time
	Source       Source
	SourceURL    string
	Slug         string
	Tags         []string
	CoverImage   string
	CoverCaption string
}
