// Copyright 2025 James Ross
package reaper

import (
	"context"
	"time"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/obs"
	"github.com/content-forge/pipeline/internal/queueclient"
	"go.uber.org/zap"
)

// Reaper runs the periodic sweeps spec.md §4.2 and §4.4 rely on to keep
// the system self-healing rather than requiring an operator to notice
// abandoned work: expired in-flight queue messages, orphaned Processor
// leases, stale SitePublisher locks, and aged dedup records.
type Reaper struct {
	cfg   config.ReaperConfig
	store objectstore.Store
	queue *queueclient.RedisClient
	log   *zap.Logger
}

func New(cfg config.ReaperConfig, store objectstore.Store, queue *queueclient.RedisClient, log *zap.Logger) *Reaper {
	return &Reaper{cfg: cfg, store: store, queue: queue, log: log}
}

// Run blocks, sweeping at cfg.Interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

var sweptQueues = []string{
	queueclient.Q1CollectionRequests,
	queueclient.Q2ProcessTopic,
	queueclient.Q3GenerateMarkdown,
	queueclient.Q4PublishSite,
}

func (r *Reaper) sweepOnce(ctx context.Context) {
	r.reclaimExpiredMessages(ctx)
	r.sweepStaleLeases(ctx)
	r.sweepStaleLocks(ctx)
	r.sweepAgedSeenEntries(ctx)
}

// reclaimExpiredMessages requeues (or dead-letters) any queue message
// whose consumer let its visibility timeout lapse without deleting or
// re-extending it.
func (r *Reaper) reclaimExpiredMessages(ctx context.Context) {
	for _, q := range sweptQueues {
		reclaimed, deadLettered, err := r.queue.ReclaimExpired(ctx, q)
		if err != nil {
			r.log.Warn("reaper: reclaim scan failed", obs.String("queue", q), obs.Err(err))
			continue
		}
		if reclaimed > 0 {
			obs.ReaperRecovered.Add(float64(reclaimed))
			r.log.Warn("reaper: requeued abandoned messages", obs.String("queue", q))
		}
		if deadLettered > 0 {
			obs.ReaperDeadLettered.Add(float64(deadLettered))
			r.log.Warn("reaper: dead-lettered messages past max dequeue count", obs.String("queue", q))
		}
	}
}

// sweepStaleLeases deletes leases/{topic_id}.lease entries whose
// ExpiresAt has already passed. Processor reclaims an expired lease
// lazily when another replica contends for the same topic, but a topic
// nobody retries again would otherwise leak its lease blob forever.
func (r *Reaper) sweepStaleLeases(ctx context.Context) {
	infos, err := r.store.List(ctx, objectstore.ContainerLeases, "", time.Time{})
	if err != nil {
		r.log.Warn("reaper: list leases failed", obs.Err(err))
		return
	}
	now := time.Now().UTC()
	for _, info := range infos {
		var lease models.LeaseRecord
		if err := r.store.DownloadJSON(ctx, objectstore.ContainerLeases, info.Path, &lease); err != nil {
			continue
		}
		if !lease.Expired(now) {
			continue
		}
		if err := r.store.Delete(ctx, objectstore.ContainerLeases, info.Path); err != nil {
			r.log.Warn("reaper: delete stale lease failed", obs.String("path", info.Path), obs.Err(err))
			continue
		}
		r.log.Info("reaper: removed stale lease", obs.String("path", info.Path))
	}
}

// sweepStaleLocks deletes locks/site-publish-{batch_id}.lock entries
// older than cfg.StaleLockAfter. Nothing else deletes these locks, so
// this sweep bounds the locks/ container; while a batch's lock exists,
// every further MaybeTriggerPublish call for that batch loses the
// conditional create.
func (r *Reaper) sweepStaleLocks(ctx context.Context) {
	infos, err := r.store.List(ctx, objectstore.ContainerLocks, "", time.Time{})
	if err != nil {
		r.log.Warn("reaper: list locks failed", obs.Err(err))
		return
	}
	now := time.Now().UTC()
	for _, info := range infos {
		var lock models.LockRecord
		if err := r.store.DownloadJSON(ctx, objectstore.ContainerLocks, info.Path, &lock); err != nil {
			continue
		}
		if !lock.Stale(now, r.cfg.StaleLockAfter) {
			continue
		}
		if err := r.store.Delete(ctx, objectstore.ContainerLocks, info.Path); err != nil {
			r.log.Warn("reaper: delete stale lock failed", obs.String("path", info.Path), obs.Err(err))
			continue
		}
		r.log.Info("reaper: removed stale lock", obs.String("path", info.Path))
	}
}

// sweepAgedSeenEntries deletes seen/ dedup records older than
// cfg.SeenRetention (spec.md §4.5's 14-day default), bounding the
// dedup container's growth rather than retaining it forever.
func (r *Reaper) sweepAgedSeenEntries(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.cfg.SeenRetention)
	infos, err := r.store.List(ctx, objectstore.ContainerSeen, "", time.Time{})
	if err != nil {
		r.log.Warn("reaper: list seen entries failed", obs.Err(err))
		return
	}
	removed := 0
	for _, info := range infos {
		if info.LastModified.After(cutoff) {
			continue
		}
		if err := r.store.Delete(ctx, objectstore.ContainerSeen, info.Path); err != nil {
			r.log.Warn("reaper: delete aged seen entry failed", obs.String("path", info.Path), obs.Err(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		r.log.Info("reaper: pruned aged dedup entries", obs.Int("count", removed))
	}
}
