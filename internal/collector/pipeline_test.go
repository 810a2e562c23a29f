// Copyright 2025 James Ross
package collector

import (
	"context"
	"testing"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/collector/sources"
	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/content-forge/pipeline/internal/ratelimit"
	"go.uber.org/zap"
)

// fakeReader streams a fixed list of raw records, for pipeline tests
// that must not depend on network access.
type fakeReader struct {
	source  models.Source
	records []sources.RawRecord
}

func (f *fakeReader) Source() models.Source { return f.source }

func (f *fakeReader) Stream(ctx context.Context, endpoint string, params map[string]any, maxItems int) (<-chan sources.RawRecord, <-chan error) {
	out := make(chan sources.RawRecord)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for i, r := range f.records {
			if maxItems > 0 && i >= maxItems {
				return
			}
			out <- r
		}
	}()
	return out, errc
}

func longBody(suffix string) string {
	return "This is a sufficiently long software programming article body about golang concurrency patterns for testing purposes " + suffix
}

func TestCollectorRunPublishesAndDedupsAndRejects(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	limiter := ratelimit.New()
	breakers := breaker.NewRegistry(time.Minute, 30*time.Second, 0.5, 20)

	reader := &fakeReader{
		source: models.SourceRSS,
		records: []sources.RawRecord{
			{Fields: map[string]any{"id": "1", "title": "A Golang Concurrency Pattern", "content": longBody("one")}},
			{Fields: map[string]any{"id": "1", "title": "A Golang Concurrency Pattern", "content": longBody("one")}}, // duplicate
			{Fields: map[string]any{"id": "2", "title": "short", "content": longBody("two")}},                         // rejected: short title
		},
	}

	c := New(&config.Config{Collector: config.CollectorConfig{DedupWindow: 1}},
		store, queue, limiter, breakers,
		map[models.Source]sources.Reader{models.SourceRSS: reader}, zap.NewNop())

	stats, collection := c.Run(context.Background(), []config.SourceConfig{
		{SourceType: models.SourceRSS, MaxItems: 10, Parameters: map[string]any{}},
	}, false)

	if stats.Collected != 3 {
		t.Fatalf("expected 3 collected, got %d", stats.Collected)
	}
	if stats.Published != 1 {
		t.Fatalf("expected 1 published, got %d", stats.Published)
	}
	if stats.RejectedDedup != 1 {
		t.Fatalf("expected 1 deduped, got %d", stats.RejectedDedup)
	}
	if stats.RejectedQuality != 1 {
		t.Fatalf("expected 1 rejected for quality, got %d", stats.RejectedQuality)
	}
	if queue.Len(queueclient.Q2ProcessTopic) != 1 {
		t.Fatalf("expected 1 message enqueued on Q2, got %d", queue.Len(queueclient.Q2ProcessTopic))
	}
	if len(collection.Items) != 1 {
		t.Fatalf("expected collection record to carry 1 survivor, got %d", len(collection.Items))
	}
}
