// Copyright 2025 James Ross
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/collector/sources"
	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/obs"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/content-forge/pipeline/internal/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collector runs the streaming source-reader -> standardise ->
// quality-gate -> dedup -> fan-out pipeline of spec.md §4.5.
type Collector struct {
	cfg      *config.Config
	store    objectstore.Store
	queue    queueclient.Client
	limiter  *ratelimit.Limiter
	breakers *breaker.Registry
	readers  map[models.Source]sources.Reader
	log      *zap.Logger
}

func New(cfg *config.Config, store objectstore.Store, queue queueclient.Client, limiter *ratelimit.Limiter, breakers *breaker.Registry, readers map[models.Source]sources.Reader, log *zap.Logger) *Collector {
	return &Collector{cfg: cfg, store: store, queue: queue, limiter: limiter, breakers: breakers, readers: readers, log: log}
}

// Run executes one collection pass across every configured source,
// running one goroutine per source (spec.md §4.5: "per-source readers
// may run concurrently across sources"), and returns run stats plus the
// Collection audit record.
func (c *Collector) Run(ctx context.Context, sourceConfigs []config.SourceConfig, strictMode bool) (models.Stats, models.Collection) {
	collectionID := uuid.NewString()
	startedAt := time.Now().UTC()

	dedup := NewDeduplicator(c.store, c.log)
	dedup.LoadRecent(ctx, c.cfg.Collector.DedupWindow)

	var (
		mu    sync.Mutex
		stats models.Stats
		items []models.CollectionItem
	)

	var wg sync.WaitGroup
	for _, sc := range sourceConfigs {
		reader, ok := c.readers[sc.SourceType]
		if !ok {
			c.log.Warn("collector: no reader configured for source", obs.String("source", string(sc.SourceType)))
			continue
		}
		wg.Add(1)
		go func(sc config.SourceConfig, reader sources.Reader) {
			defer wg.Done()
			c.runSource(ctx, sc, reader, strictMode, dedup, collectionID, &mu, &stats, &items)
		}(sc, reader)
	}
	wg.Wait()

	collection := models.Collection{
		CollectionID:  collectionID,
		StartedAt:     startedAt,
		EndedAt:       time.Now().UTC(),
		SourceConfigs: sourceConfigs,
		Items:         items,
		Stats:         stats,
	}

	// Collection-blob write failure does NOT block Q2 enqueue; it has
	// already happened per-item by this point, so this is audit-only.
	blobPath := fmt.Sprintf("%04d/%02d/%02d/%s.json", collection.EndedAt.Year(), collection.EndedAt.Month(), collection.EndedAt.Day(), collectionID)
	if err := c.store.UploadJSON(ctx, objectstore.ContainerCollectedContent, blobPath, collection, false); err != nil {
		c.log.Warn("collector: failed to persist collection audit record", obs.String("collection_id", collectionID), obs.Err(err))
	}

	return stats, collection
}

func (c *Collector) runSource(
	ctx context.Context,
	sc config.SourceConfig,
	reader sources.Reader,
	strictMode bool,
	dedup *Deduplicator,
	collectionID string,
	mu *sync.Mutex,
	stats *models.Stats,
	items *[]models.CollectionItem,
) {
	endpoint, _ := sc.Parameters["endpoint"].(string)
	rawCh, errCh := reader.Stream(ctx, endpoint, sc.Parameters, sc.MaxItems)

	for raw := range rawCh {
		item := sources.Standardise(sc.SourceType, raw)

		mu.Lock()
		stats.Collected++
		mu.Unlock()

		result := Gate(item, strictMode)
		if !result.Pass {
			mu.Lock()
			stats.RejectedQuality++
			mu.Unlock()
			obs.TopicsRejected.WithLabelValues(string(sc.SourceType)).Inc()
			continue
		}

		if dedup.CheckAndRecord(item.ContentHash) {
			mu.Lock()
			stats.RejectedDedup++
			mu.Unlock()
			obs.TopicsDeduped.WithLabelValues(string(sc.SourceType)).Inc()
			continue
		}
		go dedup.PersistSeen(context.WithoutCancel(ctx), item)

		priority := PriorityScore(item, time.Now())
		collectionBlobPath := fmt.Sprintf("%04d/%02d/%02d/%s.json", item.CollectedAt.Year(), item.CollectedAt.Month(), item.CollectedAt.Day(), collectionID)
		topic := models.NewTopicMetadata(item, priority, collectionID, collectionBlobPath)

		env, err := models.NewEnvelope("collector", models.OpProcessTopic, collectionID, topic)
		if err != nil {
			c.log.Error("collector: failed to build envelope", obs.Err(err))
			continue
		}
		if _, err := c.queue.Enqueue(ctx, queueclient.Q2ProcessTopic, env); err != nil {
			c.log.Error("collector: failed to enqueue topic", obs.TopicID(topic.TopicID), obs.Err(err))
			continue
		}

		mu.Lock()
		stats.Published++
		*items = append(*items, item)
		mu.Unlock()
		obs.TopicsCollected.WithLabelValues(string(sc.SourceType)).Inc()
	}

	if err, ok := <-errCh; ok && err != nil {
		c.log.Error("collector: source reader error", obs.String("source", string(sc.SourceType)), obs.Err(err))
	}
}

// HandleWakeUp processes a Q1 wake_up envelope: loads the source
// template carried in the payload and runs one collection pass.
func (c *Collector) HandleWakeUp(ctx context.Context, env models.Envelope) error {
	var payload struct {
		Sources []config.SourceConfig `json:"sources"`
	}
	if err := env.Decode(&payload); err != nil {
		return err
	}
	sourceConfigs := payload.Sources
	strict := true
	if len(sourceConfigs) == 0 {
		sourceConfigs = c.cfg.Collector.Sources
		strict = false // fell back to built-in defaults: permissive mode
	}
	_, _ = c.Run(ctx, sourceConfigs, strict)
	return nil
}
