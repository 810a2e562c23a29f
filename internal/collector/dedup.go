// Copyright 2025 James Ross
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"go.uber.org/zap"
)

// Deduplicator tracks content hashes seen within the dedup window,
// backed by seen/ blobs in the object store. Loading the seen-set is
// best-effort: if the store is unreachable, LoadRecent proceeds with an
// empty set ("fail open") per spec.md §4.5, since duplicates are
// preferable to silently dropping content.
type Deduplicator struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	store objectstore.Store
	log   *zap.Logger
}

func NewDeduplicator(store objectstore.Store, log *zap.Logger) *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), store: store, log: log}
}

// LoadRecent enumerates seen/ blobs modified within window and loads
// their hashes into the in-memory set.
func (d *Deduplicator) LoadRecent(ctx context.Context, window time.Duration) {
	cutoff := time.Now().Add(-window)
	infos, err := d.store.List(ctx, objectstore.ContainerSeen, "", cutoff)
	if err != nil {
		d.log.Warn("dedup: failed to load seen set, proceeding with empty set", zap.Error(err))
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range infos {
		var rec models.SeenRecord
		if err := d.store.DownloadJSON(ctx, objectstore.ContainerSeen, info.Path, &rec); err != nil {
			continue
		}
		d.seen[rec.ContentHash] = struct{}{}
	}
}

// CheckAndRecord reports whether hash was already seen. If not, it is
// added to the in-memory set immediately (so concurrent readers within
// the same run dedup against each other) and a SeenRecord is written to
// the object store asynchronously by the caller.
func (d *Deduplicator) CheckAndRecord(hash string) (alreadySeen bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[hash]; ok {
		return true
	}
	d.seen[hash] = struct{}{}
	return false
}

// PersistSeen writes the SeenRecord for a newly observed item. Failures
// are logged, not propagated: the in-memory set already reflects the
// hash, so a later run re-derives the witness from whatever did persist.
func (d *Deduplicator) PersistSeen(ctx context.Context, item models.CollectionItem) {
	now := time.Now().UTC()
	path := fmt.Sprintf("%04d/%02d/%02d/%s.json", now.Year(), now.Month(), now.Day(), item.ContentHash)
	rec := models.SeenRecord{ContentHash: item.ContentHash, SeenAt: now, Source: item.Source}
	if err := d.store.UploadJSON(ctx, objectstore.ContainerSeen, path, rec, false); err != nil {
		d.log.Warn("dedup: failed to persist seen record", zap.String("hash", item.ContentHash), zap.Error(err))
	}
}
