// Copyright 2025 James Ross
package queueclient

import (
	"context"
	"time"

	"github.com/content-forge/pipeline/internal/models"
)

// Message is a received queue item paired with the opaque receipt the
// backend needs to delete it later.
type Message struct {
	Envelope models.Envelope
	// Receipt identifies this specific delivery so Delete can remove
	// exactly the copy this consumer received, not just any message
	// with the same ID (the teacher's processing-list payload string
	// plays the same role in worker.go/reaper.go).
	Receipt string
}

// Client is the QueueClient contract of spec.md §4.2: FIFO enqueue,
// visibility-timeout receive, delete, non-consuming peek, and dead-letter
// routing once DequeueCount exceeds a threshold.
type Client interface {
	Enqueue(ctx context.Context, queue string, env models.Envelope) (messageID string, err error)
	Receive(ctx context.Context, queue string, max int, visibility time.Duration) ([]Message, error)
	Delete(ctx context.Context, queue string, msg Message) error
	Peek(ctx context.Context, queue string, max int) ([]models.Envelope, error)
}

// Queue names, matching spec.md §6.
const (
	Q1CollectionRequests = "collection-requests"
	Q2ProcessTopic       = "process-topic"
	Q3GenerateMarkdown   = "generate-markdown"
	Q4PublishSite        = "publish-site"
)
