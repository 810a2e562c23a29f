// Copyright 2025 James Ross
package queueclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestRedisClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log, _ := zap.NewDevelopment()
	return NewRedisClient(rdb, log, 3), mr
}

func TestRedisClientEnqueueReceiveDelete(t *testing.T) {
	c, mr := newTestRedisClient(t)
	defer mr.Close()
	ctx := context.Background()

	env, err := models.NewEnvelope("collector", models.OpProcessTopic, "", map[string]string{"topic_id": "reddit_abc123"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if _, err := c.Enqueue(ctx, Q2ProcessTopic, env); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	msgs, err := c.Receive(ctx, Q2ProcessTopic, 1, 5*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Envelope.DequeueCount != 1 {
		t.Fatalf("expected dequeue_count 1, got %d", msgs[0].Envelope.DequeueCount)
	}

	if err := c.Delete(ctx, Q2ProcessTopic, msgs[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	peeked, err := c.Peek(ctx, Q2ProcessTopic, 10)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(peeked) != 0 {
		t.Fatalf("expected empty queue after delete, got %d", len(peeked))
	}
}

func TestRedisClientReclaimExpiredRequeues(t *testing.T) {
	c, mr := newTestRedisClient(t)
	defer mr.Close()
	ctx := context.Background()

	env, _ := models.NewEnvelope("collector", models.OpProcessTopic, "", map[string]string{"topic_id": "reddit_x"})
	_, _ = c.Enqueue(ctx, Q2ProcessTopic, env)

	// Receive with a very short visibility window, then let it lapse
	// without deleting — simulating a crashed processor.
	if _, err := c.Receive(ctx, Q2ProcessTopic, 1, 10*time.Millisecond); err != nil {
		t.Fatalf("receive: %v", err)
	}
	mr.FastForward(20 * time.Millisecond)

	reclaimed, dead, err := c.ReclaimExpired(ctx, Q2ProcessTopic)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 1 || dead != 0 {
		t.Fatalf("expected 1 reclaimed 0 dead, got %d/%d", reclaimed, dead)
	}

	peeked, err := c.Peek(ctx, Q2ProcessTopic, 10)
	if err != nil || len(peeked) != 1 {
		t.Fatalf("expected message back on queue: %v len=%d", err, len(peeked))
	}
}

func TestRedisClientDeadLettersAfterMaxDequeue(t *testing.T) {
	c, mr := newTestRedisClient(t)
	defer mr.Close()
	c.maxDequeueCount = 1
	ctx := context.Background()

	env, _ := models.NewEnvelope("collector", models.OpProcessTopic, "", map[string]string{"topic_id": "reddit_y"})
	_, _ = c.Enqueue(ctx, Q2ProcessTopic, env)

	for i := 0; i < 2; i++ {
		if _, err := c.Receive(ctx, Q2ProcessTopic, 1, 5*time.Millisecond); err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		mr.FastForward(10 * time.Millisecond)
		if _, _, err := c.ReclaimExpired(ctx, Q2ProcessTopic); err != nil {
			t.Fatalf("reclaim %d: %v", i, err)
		}
	}

	dlq, err := c.rdb.LRange(ctx, poisonKey(Q2ProcessTopic), 0, -1).Result()
	if err != nil {
		t.Fatalf("dlq read: %v", err)
	}
	if len(dlq) != 1 {
		t.Fatalf("expected 1 dead-lettered message, got %d", len(dlq))
	}
}
