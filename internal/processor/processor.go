// Copyright 2025 James Ross
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	pipelineerrors "github.com/content-forge/pipeline/internal/errors"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/obs"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/processor/llm"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/content-forge/pipeline/internal/ratelimit"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when a region's circuit breaker is tripped,
// so the retry loop treats it the same as any other transient failure.
var ErrBreakerOpen = errors.New("processor: llm circuit breaker open")

// Outcome classifies what Processor.HandleProcessTopic did with a Q2
// message, so the caller's queue loop knows whether to delete it, leave
// it for the next redelivery, or count it toward dead-letter accounting.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeAnotherReplicaOwns
	OutcomeAlreadyProcessed
	OutcomeTransientRetry
	OutcomePoison
)

// Processor consumes one TopicMetadata per call, produces one
// ProcessedArticle, and fans out to Q3. One Processor value is shared
// across all messages a replica handles; it holds no per-message state.
type Processor struct {
	replicaID string
	store     objectstore.Store
	queue     queueclient.Client
	limiter   *ratelimit.Limiter
	breakers  *breaker.Registry
	llm       llm.Client
	leaseTTL  time.Duration
	maxRetry  int
	minScore  float64
	regions   []string
	log       *zap.Logger
}

func New(replicaID string, store objectstore.Store, queue queueclient.Client, limiter *ratelimit.Limiter,
	breakers *breaker.Registry, client llm.Client, leaseTTL time.Duration, maxRetry int, minScore float64,
	regions []string, log *zap.Logger) *Processor {
	if len(regions) == 0 {
		regions = []string{"us"}
	}
	return &Processor{
		replicaID: replicaID,
		store:     store,
		queue:     queue,
		limiter:   limiter,
		breakers:  breakers,
		llm:       client,
		leaseTTL:  leaseTTL,
		maxRetry:  maxRetry,
		minScore:  minScore,
		regions:   regions,
		log:       log,
	}
}

// regionFor deterministically assigns a topic to one of the configured
// LLM regions, so retries of the same topic always target the same
// region's rate limiter and breaker state.
func (p *Processor) regionFor(topicID string) string {
	sum := 0
	for _, r := range topicID {
		sum += int(r)
	}
	return p.regions[sum%len(p.regions)]
}

var articleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// articleID derives a filename-safe identifier from a topic id.
func articleID(topicID string) string {
	return "article_" + articleIDSanitizer.ReplaceAllString(topicID, "_")
}

func processedPrefix(date time.Time) string {
	return fmt.Sprintf("%04d/%02d/%02d/", date.Year(), date.Month(), date.Day())
}

func leasePath(topicID string) string {
	return topicID + ".lease"
}

// HandleProcessTopic runs the full algorithm of spec.md §4.4 for one Q2
// message. It never deletes or fails to delete the message itself — the
// caller's queue loop does that based on the returned Outcome.
func (p *Processor) HandleProcessTopic(ctx context.Context, env models.Envelope) (Outcome, error) {
	var topic models.TopicMetadata
	if err := env.Decode(&topic); err != nil {
		return OutcomePoison, pipelineerrors.Classify(pipelineerrors.KindValidation, err)
	}

	start := time.Now()
	log := p.log.With(obs.TopicID(topic.TopicID))

	outcome, err := p.processLeasedTopic(ctx, topic, log)
	obs.ProcessingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		obs.ArticlesFailed.WithLabelValues(pipelineerrors.KindOf(err).String()).Inc()
	}
	return outcome, err
}

func (p *Processor) processLeasedTopic(ctx context.Context, topic models.TopicMetadata, log *zap.Logger) (Outcome, error) {
	acquired, err := p.acquireLease(ctx, topic.TopicID)
	if err != nil {
		return OutcomeTransientRetry, pipelineerrors.Classify(pipelineerrors.KindTransientIO, err)
	}
	if !acquired {
		log.Info("lease held by another replica, deleting message")
		return OutcomeAnotherReplicaOwns, nil
	}

	if existing, err := p.findExisting(ctx, topic); err != nil {
		log.Warn("idempotency check failed, continuing to process", obs.Err(err))
	} else if existing {
		log.Info("already processed, short-circuiting")
		return OutcomeAlreadyProcessed, nil
	}

	article, err := p.generate(ctx, topic)
	if err != nil {
		if pipelineerrors.IsThrottling(err) || pipelineerrors.IsTransient(err) {
			return OutcomeTransientRetry, err
		}
		return OutcomePoison, err
	}

	if err := p.persistAndFanOut(ctx, article); err != nil {
		return OutcomeTransientRetry, pipelineerrors.Classify(pipelineerrors.KindTransientIO, err)
	}

	obs.ArticlesProcessed.Inc()
	_ = p.store.Delete(ctx, objectstore.ContainerLeases, leasePath(topic.TopicID))
	return OutcomeCompleted, nil
}

// acquireLease implements spec.md §4.4 step 1: conditional-create,
// single retry after finding an expired lease, otherwise the caller
// treats "another replica owns it" as success.
func (p *Processor) acquireLease(ctx context.Context, topicID string) (bool, error) {
	path := leasePath(topicID)
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		lease := models.LeaseRecord{
			Holder:     p.replicaID,
			AcquiredAt: now,
			ExpiresAt:  now.Add(p.leaseTTL),
		}
		err := p.store.UploadJSON(ctx, objectstore.ContainerLeases, path, lease, true)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, objectstore.ErrConflict) {
			return false, err
		}
		var existing models.LeaseRecord
		if derr := p.store.DownloadJSON(ctx, objectstore.ContainerLeases, path, &existing); derr != nil {
			return false, nil
		}
		if !existing.Expired(now) {
			return false, nil
		}
		_ = p.store.Delete(ctx, objectstore.ContainerLeases, path)
	}
	return false, nil
}

// findExisting implements spec.md §4.4 step 2 by listing the processed/
// prefix for the topic's collection date.
func (p *Processor) findExisting(ctx context.Context, topic models.TopicMetadata) (bool, error) {
	prefix := processedPrefix(topic.CollectedAt)
	id := articleID(topic.TopicID)
	infos, err := p.store.List(ctx, objectstore.ContainerProcessedContent, prefix, time.Time{})
	if err != nil {
		return false, err
	}
	for _, info := range infos {
		if strings.HasSuffix(info.Path, id+".json") {
			return true, nil
		}
	}
	return false, nil
}

// generate implements spec.md §4.4 steps 3-6: LLM rewrite with retry,
// title cleaning, slug/filename derivation, and quality scoring.
func (p *Processor) generate(ctx context.Context, topic models.TopicMetadata) (models.ProcessedArticle, error) {
	genStart := time.Now()
	region := p.regionFor(topic.TopicID)
	rewrite, cost, err := p.rewriteWithRetry(ctx, region, topic)
	if err != nil {
		return models.ProcessedArticle{}, err
	}

	cleanedTitle := CleanTitle(topic.Title)
	seoTitle := cleanedTitle
	if NeedsRewrite(cleanedTitle) {
		titleResp, err := p.llm.RewriteTitle(ctx, llm.TitleRequest{CleanedTitle: cleanedTitle, Content: rewrite.Content})
		if err == nil {
			seoTitle = titleResp.Title
			cost.Tokens += titleResp.Tokens
			cost.CostUSD += titleResp.CostUSD
		}
	}

	slug := Slugify(seoTitle)
	if slug == "" {
		slug = Slugify(cleanedTitle)
	}
	disambiguated, err := p.disambiguateIfColliding(ctx, topic, slug)
	if err != nil {
		return models.ProcessedArticle{}, pipelineerrors.Classify(pipelineerrors.KindTransientIO, err)
	}
	slug = disambiguated

	now := time.Now().UTC()
	article := models.ProcessedArticle{
		ArticleID:       articleID(topic.TopicID),
		OriginalTopicID: topic.TopicID,
		Slug:            slug,
		SEOTitle:        seoTitle,
		URL:             URL(topic.CollectedAt, slug),
		Filename:        Filename(topic.CollectedAt, slug),
		Title:           seoTitle,
		Content:         rewrite.Content,
		Tags:            ExtractTags(seoTitle, rewrite.Content),
		WordCount:       WordCount(rewrite.Content),
		QualityScore:    QualityScore(rewrite.Content, topic.Upvotes, topic.Comments, topic.Boosts),
		Source:          topic.Source,
		OriginalURL:     topic.SourceURL,
		CollectedAt:     topic.CollectedAt,
		ProcessedAt:     now,
		ProcessorID:     p.replicaID,
		CollectionID:    topic.CollectionID,
		Provenance: []models.ProvenanceRecord{
			{Stage: "collected", Timestamp: topic.CollectedAt, Actor: topic.CollectionID},
			{Stage: "processed", Timestamp: now, Actor: p.replicaID},
		},
		Costs: models.Costs{
			OpenAITokens:          cost.Tokens,
			OpenAICostUSD:         cost.CostUSD,
			ProcessingTimeSeconds: time.Since(genStart).Seconds(),
			Model:                 rewrite.Model,
		},
		ContractVersion: models.ContractVersion,
	}
	if article.QualityScore < p.minScore {
		return models.ProcessedArticle{}, pipelineerrors.Classify(pipelineerrors.KindValidation,
			fmt.Errorf("quality score %.2f below minimum %.2f", article.QualityScore, p.minScore))
	}
	return article, nil
}

type accumulatedCost struct {
	Tokens  int
	CostUSD float64
}

// rewriteWithRetry implements spec.md §4.4 step 3: throttling retries
// under the limiter's own backoff (up to 3), other transient errors
// retried up to 2 times with jittered backoff, then poison.
func (p *Processor) rewriteWithRetry(ctx context.Context, region string, topic models.TopicMetadata) (llm.RewriteResponse, accumulatedCost, error) {
	callCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	req := llm.RewriteRequest{Title: topic.Title, Source: string(topic.Source), Content: topic.Content}

	cb := p.breakers.For(region)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if !cb.Allow() {
			lastErr = pipelineerrors.Classify(pipelineerrors.KindTransientIO, ErrBreakerOpen)
			if attempt > p.maxRetry {
				break
			}
			select {
			case <-time.After(ratelimit.JitteredBackoff(attempt, 200*time.Millisecond, 5*time.Second)):
			case <-callCtx.Done():
				return llm.RewriteResponse{}, accumulatedCost{}, pipelineerrors.Classify(pipelineerrors.KindCancellation, callCtx.Err())
			}
			continue
		}
		if err := p.limiter.Acquire(callCtx, region); err != nil {
			return llm.RewriteResponse{}, accumulatedCost{}, pipelineerrors.Classify(pipelineerrors.KindCancellation, err)
		}
		resp, err := p.llm.Rewrite(callCtx, req)
		cb.Record(err == nil)
		if err == nil {
			p.limiter.NoteSuccess(region)
			return resp, accumulatedCost{Tokens: resp.Tokens, CostUSD: resp.CostUSD}, nil
		}
		if err == llm.ErrThrottled {
			p.limiter.NoteThrottled(region, 0)
			lastErr = pipelineerrors.Classify(pipelineerrors.KindThrottling, err)
			continue
		}
		lastErr = pipelineerrors.Classify(pipelineerrors.KindTransientIO, err)
		if attempt > p.maxRetry {
			break
		}
		select {
		case <-time.After(ratelimit.JitteredBackoff(attempt, 200*time.Millisecond, 5*time.Second)):
		case <-callCtx.Done():
			return llm.RewriteResponse{}, accumulatedCost{}, pipelineerrors.Classify(pipelineerrors.KindCancellation, callCtx.Err())
		}
	}
	return llm.RewriteResponse{}, accumulatedCost{}, pipelineerrors.Classify(pipelineerrors.KindPermanent, lastErr)
}

// disambiguateIfColliding implements spec.md §4.4 S2: if another topic
// already claims this slug on this date, append a deterministic hash
// suffix before writing.
func (p *Processor) disambiguateIfColliding(ctx context.Context, topic models.TopicMetadata, slug string) (string, error) {
	prefix := processedPrefix(topic.CollectedAt)
	infos, err := p.store.List(ctx, objectstore.ContainerProcessedContent, prefix, time.Time{})
	if err != nil {
		return slug, err
	}
	target := Filename(topic.CollectedAt, slug)
	myID := articleID(topic.TopicID)
	for _, info := range infos {
		if !strings.HasSuffix(info.Path, ".json") {
			continue
		}
		if strings.Contains(info.Path, myID) {
			continue
		}
		var existing models.ProcessedArticle
		if err := p.store.DownloadJSON(ctx, objectstore.ContainerProcessedContent, info.Path, &existing); err != nil {
			continue
		}
		if existing.Filename == target && existing.OriginalTopicID != topic.TopicID {
			return DisambiguateSlug(slug, topic.TopicID), nil
		}
	}
	return slug, nil
}

// persistAndFanOut implements spec.md §4.4 steps 7-8.
func (p *Processor) persistAndFanOut(ctx context.Context, article models.ProcessedArticle) error {
	path := processedPrefix(article.CollectedAt) + article.ArticleID + ".json"
	if err := p.store.UploadJSON(ctx, objectstore.ContainerProcessedContent, path, article, false); err != nil {
		return err
	}

	payload := models.GenerateMarkdownPayload{ArticleBlob: path, CollectionID: article.CollectionID}
	env, err := models.NewEnvelope("processor", models.OpGenerateMarkdown, article.CollectionID, payload)
	if err != nil {
		return err
	}
	_, err = p.queue.Enqueue(ctx, queueclient.Q3GenerateMarkdown, env)
	return err
}

// NewReplicaID mirrors the teacher's worker.go host/pid/nonce identity
// pattern, generalized to a Processor replica rather than a per-goroutine
// worker id.
func NewReplicaID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}
