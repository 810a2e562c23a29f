// Copyright 2025 James Ross
package processor

import (
	"context"
	"testing"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/processor/llm"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/content-forge/pipeline/internal/ratelimit"
	"go.uber.org/zap"
)

func longContent(words int) string {
	return makeContent(words)
}

func testTopic(id string) models.TopicMetadata {
	return models.TopicMetadata{
		TopicID:      models.TopicID(models.SourceReddit, id),
		Title:        "A Big Idea",
		Content:      longContent(900),
		Source:       models.SourceReddit,
		CollectedAt:  time.Now().UTC(),
		CollectionID: "collection-1",
		Upvotes:      500,
		Comments:     80,
	}
}

func envelopeFor(t *testing.T, topic models.TopicMetadata) models.Envelope {
	t.Helper()
	env, err := models.NewEnvelope("collector", models.OpProcessTopic, topic.CollectionID, topic)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func newTestProcessor(store objectstore.Store, queue queueclient.Client, client llm.Client) *Processor {
	return New("replica-1", store, queue, ratelimit.New(), breaker.NewRegistry(time.Minute, 30*time.Second, 0.5, 20),
		client, 10*time.Minute, 2, 0.0, []string{"us"}, zap.NewNop())
}

func TestHandleProcessTopicHappyPath(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	p := newTestProcessor(store, queue, &llm.FakeClient{})

	topic := testTopic("abc123")
	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected OutcomeCompleted, got %v", outcome)
	}
	if queue.Len(queueclient.Q3GenerateMarkdown) != 1 {
		t.Fatalf("expected 1 message on Q3, got %d", queue.Len(queueclient.Q3GenerateMarkdown))
	}

	// lease should have been released on completion
	var lease models.LeaseRecord
	if err := store.DownloadJSON(context.Background(), objectstore.ContainerLeases, topic.TopicID+".lease", &lease); err == nil {
		t.Fatalf("expected lease to be deleted after completion")
	}
}

func TestHandleProcessTopicIdempotentShortCircuit(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	p := newTestProcessor(store, queue, &llm.FakeClient{})

	topic := testTopic("dup1")
	existing := models.ProcessedArticle{ArticleID: articleID(topic.TopicID), OriginalTopicID: topic.TopicID}
	path := processedPrefix(topic.CollectedAt) + existing.ArticleID + ".json"
	if err := store.UploadJSON(context.Background(), objectstore.ContainerProcessedContent, path, existing, false); err != nil {
		t.Fatal(err)
	}

	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadyProcessed {
		t.Fatalf("expected OutcomeAlreadyProcessed, got %v", outcome)
	}
	if queue.Len(queueclient.Q3GenerateMarkdown) != 0 {
		t.Fatalf("expected no Q3 enqueue on short-circuit")
	}
}

func TestHandleProcessTopicLeaseHeldByAnotherReplica(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	p := newTestProcessor(store, queue, &llm.FakeClient{})

	topic := testTopic("held1")
	lease := models.LeaseRecord{Holder: "other-replica", AcquiredAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.UploadJSON(context.Background(), objectstore.ContainerLeases, topic.TopicID+".lease", lease, true); err != nil {
		t.Fatal(err)
	}

	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAnotherReplicaOwns {
		t.Fatalf("expected OutcomeAnotherReplicaOwns, got %v", outcome)
	}
}

func TestHandleProcessTopicExpiredLeaseIsReclaimed(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	p := newTestProcessor(store, queue, &llm.FakeClient{})

	topic := testTopic("expired1")
	lease := models.LeaseRecord{Holder: "dead-replica", AcquiredAt: time.Now().Add(-time.Hour), ExpiresAt: time.Now().Add(-time.Minute)}
	if err := store.UploadJSON(context.Background(), objectstore.ContainerLeases, topic.TopicID+".lease", lease, true); err != nil {
		t.Fatal(err)
	}

	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected expired lease to be reclaimed and message completed, got %v", outcome)
	}
}

func TestHandleProcessTopicThrottleThenSucceed(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	client := &llm.FakeClient{Err: llm.ErrThrottled}
	p := newTestProcessor(store, queue, client)

	topic := testTopic("throttled1")
	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err != nil {
		t.Fatalf("unexpected error after throttle-then-succeed: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected OutcomeCompleted after recovering from one throttle, got %v", outcome)
	}
}

func TestHandleProcessTopicPersistentLLMFailureIsPoison(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	client := &llm.FakeClient{RewriteFn: func(llm.RewriteRequest) (llm.RewriteResponse, error) {
		return llm.RewriteResponse{}, errAlwaysFails
	}}
	p := newTestProcessor(store, queue, client)

	topic := testTopic("poison1")
	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err == nil {
		t.Fatalf("expected an error for persistent LLM failure")
	}
	if outcome != OutcomePoison {
		t.Fatalf("expected OutcomePoison, got %v", outcome)
	}
	if queue.Len(queueclient.Q3GenerateMarkdown) != 0 {
		t.Fatalf("expected no Q3 enqueue on poison outcome")
	}
}

func TestHandleProcessTopicBelowQualityThresholdIsPoison(t *testing.T) {
	store := objectstore.NewMemoryStore()
	queue := queueclient.NewMemoryClient(3)
	client := &llm.FakeClient{RewriteFn: func(req llm.RewriteRequest) (llm.RewriteResponse, error) {
		return llm.RewriteResponse{Content: "too short", Tokens: 5, CostUSD: 0.00001, Model: "fake"}, nil
	}}
	p := New("replica-1", store, queue, ratelimit.New(), breaker.NewRegistry(time.Minute, 30*time.Second, 0.5, 20),
		client, 10*time.Minute, 2, 0.9, []string{"us"}, zap.NewNop())

	topic := testTopic("lowqual1")
	outcome, err := p.HandleProcessTopic(context.Background(), envelopeFor(t, topic))
	if err == nil {
		t.Fatalf("expected below-threshold quality score to error")
	}
	if outcome != OutcomePoison {
		t.Fatalf("expected OutcomePoison, got %v", outcome)
	}
}

var errAlwaysFails = fakeErr("persistent upstream failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
