// Copyright 2025 James Ross
package markdowngen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/queueclient"
	"go.uber.org/zap"
)

// MarkdownGen consumes one generate_markdown message at a time and,
// exactly once per collection batch, triggers SitePublisher once Q3 has
// drained. It holds no per-message state between calls.
type MarkdownGen struct {
	replicaID string
	store     objectstore.Store
	queue     queueclient.Client
	log       *zap.Logger
}

func New(replicaID string, store objectstore.Store, queue queueclient.Client, log *zap.Logger) *MarkdownGen {
	return &MarkdownGen{replicaID: replicaID, store: store, queue: queue, log: log}
}

// HandleGenerateMarkdown implements spec.md §4.6's single operation:
// download the referenced ProcessedArticle, render it, upload to
// markdown/articles/YYYY/MM/{filename}.md. Returns the batch id the
// caller should use for MaybeTriggerPublish.
func (g *MarkdownGen) HandleGenerateMarkdown(ctx context.Context, env models.Envelope) (batchID string, err error) {
	var payload models.GenerateMarkdownPayload
	if err := env.Decode(&payload); err != nil {
		return "", err
	}

	var article models.ProcessedArticle
	if err := g.store.DownloadJSON(ctx, objectstore.ContainerProcessedContent, payload.ArticleBlob, &article); err != nil {
		return "", err
	}

	rendered := Render(article)
	path := fmt.Sprintf("articles/%04d/%02d/%s", article.CollectedAt.Year(), article.CollectedAt.Month(), article.Filename)
	if err := g.store.UploadText(ctx, objectstore.ContainerMarkdownContent, path, rendered, "text/markdown"); err != nil {
		return "", err
	}

	batchID = payload.CollectionID
	if batchID == "" {
		batchID = article.CollectionID
	}
	if batchID == "" {
		batchID = fmt.Sprintf("ts-%d", time.Now().UTC().Unix())
	}
	return batchID, nil
}

// MaybeTriggerPublish implements spec.md §4.6's completion signalling:
// a candidate trigger (Q3 observed empty right after a successful
// processing attempt) attempts a conditional-create lock; on success it
// enqueues the one-and-only Q4 publish_site_request for this batch.
// Returns whether THIS call won the lock and sent the trigger.
func (g *MarkdownGen) MaybeTriggerPublish(ctx context.Context, batchID string, markdownCount int) (bool, error) {
	lockPath := fmt.Sprintf("site-publish-%s.lock", batchID)
	lock := models.LockRecord{BatchID: batchID, Holder: g.replicaID, LockedAt: time.Now().UTC()}
	err := g.store.UploadJSON(ctx, objectstore.ContainerLocks, lockPath, lock, true)
	if err != nil {
		if errors.Is(err, objectstore.ErrConflict) {
			g.log.Info("publish trigger already sent by another replica", zap.String("batch_id", batchID))
			return false, nil
		}
		return false, err
	}

	payload := models.PublishSiteRequestPayload{
		BatchID:           batchID,
		MarkdownCount:     markdownCount,
		MarkdownContainer: objectstore.ContainerMarkdownContent,
	}
	env, err := models.NewEnvelope("markdowngen", models.OpPublishSiteReq, batchID, payload)
	if err != nil {
		return false, err
	}
	if _, err := g.queue.Enqueue(ctx, queueclient.Q4PublishSite, env); err != nil {
		return false, err
	}
	g.log.Info("publish trigger sent; this replica won the lock", zap.String("batch_id", batchID))
	return true, nil
}
