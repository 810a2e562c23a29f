// Copyright 2025 James Ross
package markdowngen

import (
	"context"
	"testing"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/queueclient"
	"go.uber.org/zap"
)

func TestHandleGenerateMarkdownUploadsAndReturnsBatchID(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	g := New("replica-1", store, queue, zap.NewNop())

	article := models.ProcessedArticle{
		ArticleID:    "article_reddit_abc123",
		Slug:         "a-big-idea",
		Filename:     "20241008-a-big-idea.md",
		Content:      "Body text.",
		CollectedAt:  time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC),
		CollectionID: "collection-1",
	}
	if err := store.UploadJSON(context.Background(), objectstore.ContainerProcessedContent, "2024/10/08/article_reddit_abc123.json", article, false); err != nil {
		t.Fatal(err)
	}

	payload := models.GenerateMarkdownPayload{ArticleBlob: "2024/10/08/article_reddit_abc123.json", CollectionID: "collection-1"}
	env, err := models.NewEnvelope("processor", models.OpGenerateMarkdown, "collection-1", payload)
	if err != nil {
		t.Fatal(err)
	}

	batchID, err := g.HandleGenerateMarkdown(context.Background(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batchID != "collection-1" {
		t.Fatalf("expected batch id collection-1, got %q", batchID)
	}

	rendered, err := store.DownloadText(context.Background(), objectstore.ContainerMarkdownContent, "articles/2024/10/20241008-a-big-idea.md")
	if err != nil {
		t.Fatalf("expected markdown blob to be written: %v", err)
	}
	if rendered == "" {
		t.Fatalf("expected non-empty rendered markdown")
	}
}

func TestMaybeTriggerPublishWinsLockAndEnqueues(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	g := New("replica-1", store, queue, zap.NewNop())

	triggered, err := g.MaybeTriggerPublish(context.Background(), "batch-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !triggered {
		t.Fatalf("expected first caller to win the lock")
	}
	if queue.Len(queueclient.Q4PublishSite) != 1 {
		t.Fatalf("expected 1 message on Q4, got %d", queue.Len(queueclient.Q4PublishSite))
	}
}

func TestMaybeTriggerPublishOnlyOnceAcrossReplicas(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	g1 := New("replica-1", store, queue, zap.NewNop())
	g2 := New("replica-2", store, queue, zap.NewNop())

	first, err := g1.MaybeTriggerPublish(context.Background(), "batch-1", 5)
	if err != nil || !first {
		t.Fatalf("expected replica-1 to win, got triggered=%v err=%v", first, err)
	}
	second, err := g2.MaybeTriggerPublish(context.Background(), "batch-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second {
		t.Fatalf("expected replica-2 to lose the lock")
	}
	if queue.Len(queueclient.Q4PublishSite) != 1 {
		t.Fatalf("expected exactly 1 Q4 message across both replicas, got %d", queue.Len(queueclient.Q4PublishSite))
	}
}
