// Copyright 2025 James Ross
package collector

import (
	"context"
	"testing"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"go.uber.org/zap"
)

func TestDeduplicatorCheckAndRecord(t *testing.T) {
	d := NewDeduplicator(objectstore.NewMemoryStore(), zap.NewNop())
	if d.CheckAndRecord("hash-a") {
		t.Fatalf("expected first sighting to not be seen")
	}
	if !d.CheckAndRecord("hash-a") {
		t.Fatalf("expected second sighting to be seen")
	}
}

func TestDeduplicatorLoadRecentPopulatesSeenSet(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	rec := models.SeenRecord{ContentHash: "hash-b", SeenAt: now, Source: models.SourceRSS}
	path := "2026/07/30/hash-b.json"
	if err := store.UploadJSON(ctx, objectstore.ContainerSeen, path, rec, false); err != nil {
		t.Fatal(err)
	}

	d := NewDeduplicator(store, zap.NewNop())
	d.LoadRecent(ctx, 14*24*time.Hour)

	if !d.CheckAndRecord("hash-b") {
		t.Fatalf("expected hash-b loaded from seen/ to be recognized as seen")
	}
}

func TestDeduplicatorFailsOpenWhenStoreUnreachable(t *testing.T) {
	d := NewDeduplicator(&brokenListStore{}, zap.NewNop())
	d.LoadRecent(context.Background(), 14*24*time.Hour)
	if d.CheckAndRecord("anything") {
		t.Fatalf("expected fail-open (empty seen set) when the store is unreachable")
	}
}

// brokenListStore always fails List, simulating an unreachable object store.
type brokenListStore struct{ objectstore.Store }

func (b *brokenListStore) List(ctx context.Context, container, prefix string, modifiedSince time.Time) ([]objectstore.ObjectInfo, error) {
	return nil, objectstore.ErrTransientIO
}
