// Copyright 2025 James Ross
package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestReaper(t *testing.T) (*Reaper, *objectstore.MemoryStore, *queueclient.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := objectstore.NewMemoryStore()
	qc := queueclient.NewRedisClient(rdb, zap.NewNop(), 3)
	cfg := config.ReaperConfig{
		Interval:       time.Minute,
		SeenRetention:  14 * 24 * time.Hour,
		StaleLockAfter: 15 * time.Minute,
	}
	return New(cfg, store, qc, zap.NewNop()), store, qc, mr
}

func TestSweepStaleLeasesRemovesExpiredOnly(t *testing.T) {
	r, store, _, _ := newTestReaper(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := models.LeaseRecord{Holder: "replica-1", AcquiredAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)}
	live := models.LeaseRecord{Holder: "replica-1", AcquiredAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.UploadJSON(ctx, objectstore.ContainerLeases, "expired.lease", expired, false); err != nil {
		t.Fatal(err)
	}
	if err := store.UploadJSON(ctx, objectstore.ContainerLeases, "live.lease", live, false); err != nil {
		t.Fatal(err)
	}

	r.sweepStaleLeases(ctx)

	if err := store.DownloadJSON(ctx, objectstore.ContainerLeases, "expired.lease", &models.LeaseRecord{}); err == nil {
		t.Fatalf("expected expired lease to be removed")
	}
	if err := store.DownloadJSON(ctx, objectstore.ContainerLeases, "live.lease", &models.LeaseRecord{}); err != nil {
		t.Fatalf("expected live lease to survive: %v", err)
	}
}

func TestSweepStaleLocksRemovesOldOnly(t *testing.T) {
	r, store, _, _ := newTestReaper(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := models.LockRecord{BatchID: "b1", Holder: "replica-1", LockedAt: now.Add(-time.Hour)}
	fresh := models.LockRecord{BatchID: "b2", Holder: "replica-1", LockedAt: now}
	if err := store.UploadJSON(ctx, objectstore.ContainerLocks, "site-publish-b1.lock", stale, false); err != nil {
		t.Fatal(err)
	}
	if err := store.UploadJSON(ctx, objectstore.ContainerLocks, "site-publish-b2.lock", fresh, false); err != nil {
		t.Fatal(err)
	}

	r.sweepStaleLocks(ctx)

	if err := store.DownloadJSON(ctx, objectstore.ContainerLocks, "site-publish-b1.lock", &models.LockRecord{}); err == nil {
		t.Fatalf("expected stale lock to be removed")
	}
	if err := store.DownloadJSON(ctx, objectstore.ContainerLocks, "site-publish-b2.lock", &models.LockRecord{}); err != nil {
		t.Fatalf("expected fresh lock to survive: %v", err)
	}
}

func TestSweepAgedSeenEntriesPrunesAgedEntry(t *testing.T) {
	r, store, _, _ := newTestReaper(t)
	ctx := context.Background()

	if err := store.UploadText(ctx, objectstore.ContainerSeen, "reddit_recent", "{}", "application/json"); err != nil {
		t.Fatal(err)
	}
	r.cfg.SeenRetention = time.Millisecond
	time.Sleep(5 * time.Millisecond)

	r.sweepAgedSeenEntries(ctx)

	if _, err := store.DownloadText(ctx, objectstore.ContainerSeen, "reddit_recent"); err == nil {
		t.Fatalf("expected aged seen entry to be pruned")
	}
}

func TestReclaimExpiredMessagesRequeuesAbandonedWork(t *testing.T) {
	r, _, qc, mr := newTestReaper(t)
	ctx := context.Background()

	env, err := models.NewEnvelope("collector", models.OpProcessTopic, "c1", models.TopicMetadata{TopicID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := qc.Enqueue(ctx, queueclient.Q2ProcessTopic, env); err != nil {
		t.Fatal(err)
	}
	if _, err := qc.Receive(ctx, queueclient.Q2ProcessTopic, 1, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(10 * time.Millisecond)

	r.reclaimExpiredMessages(ctx)

	items, err := qc.Peek(ctx, queueclient.Q2ProcessTopic, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the abandoned message to be requeued, got %d items", len(items))
	}
}
