// Copyright 2025 James Ross
package queueclient

import (
	"context"
	"sync"
	"time"

	"github.com/content-forge/pipeline/internal/models"
)

// MemoryClient implements Client in memory for unit tests.
type MemoryClient struct {
	mu              sync.Mutex
	queues          map[string][]models.Envelope
	inflight        map[string][]Message
	poison          map[string][]models.Envelope
	maxDequeueCount int
}

// NewMemoryClient returns an empty in-memory FIFO client.
func NewMemoryClient(maxDequeueCount int) *MemoryClient {
	if maxDequeueCount <= 0 {
		maxDequeueCount = 3
	}
	return &MemoryClient{
		queues:          make(map[string][]models.Envelope),
		inflight:        make(map[string][]Message),
		poison:          make(map[string][]models.Envelope),
		maxDequeueCount: maxDequeueCount,
	}
}

func (c *MemoryClient) Enqueue(ctx context.Context, queue string, env models.Envelope) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[queue] = append(c.queues[queue], env)
	return env.MessageID, nil
}

func (c *MemoryClient) Receive(ctx context.Context, queue string, max int, visibility time.Duration) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[queue]
	n := max
	if n > len(q) {
		n = len(q)
	}
	out := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		env := q[i]
		env.DequeueCount++
		msg := Message{Envelope: env, Receipt: env.MessageID}
		out = append(out, msg)
		c.inflight[queue] = append(c.inflight[queue], msg)
	}
	c.queues[queue] = q[n:]
	return out, nil
}

func (c *MemoryClient) Delete(ctx context.Context, queue string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.inflight[queue]
	for i, m := range list {
		if m.Receipt == msg.Receipt {
			c.inflight[queue] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (c *MemoryClient) Peek(ctx context.Context, queue string, max int) ([]models.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[queue]
	n := max
	if n > len(q) {
		n = len(q)
	}
	out := make([]models.Envelope, n)
	copy(out, q[:n])
	return out, nil
}

// Requeue moves every still-inflight message on queue back onto the
// queue (or into the poison list, once past the dequeue threshold),
// simulating a visibility-timeout expiry for tests.
func (c *MemoryClient) Requeue(queue string) (reclaimed, deadLettered int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.inflight[queue] {
		if m.Envelope.DequeueCount > c.maxDequeueCount {
			c.poison[queue] = append(c.poison[queue], m.Envelope)
			deadLettered++
			continue
		}
		c.queues[queue] = append(c.queues[queue], m.Envelope)
		reclaimed++
	}
	c.inflight[queue] = nil
	return reclaimed, deadLettered
}

// Poisoned returns the envelopes currently in queue's dead-letter list.
func (c *MemoryClient) Poisoned(queue string) []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Envelope, len(c.poison[queue]))
	copy(out, c.poison[queue])
	return out
}

// Len reports the number of pending (not in-flight) messages on queue.
func (c *MemoryClient) Len(queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[queue])
}
