// Copyright 2025 James Ross
package queueclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient implements Client on top of Redis lists, generalizing the
// teacher's BRPOPLPUSH-into-a-processing-list idiom (worker.go) from a
// per-worker processing list into a per-queue in-flight list shared by
// whichever consumer happens to receive. Visibility timeout is emulated
// the same way the teacher's reaper reclaims abandoned work: an inflight
// entry carries its own expiry, and ReclaimExpired (normally run by the
// MaxDequeueCount-aware sweep in internal/reaper) requeues anything past
// due back onto the origin queue, or into the queue's poison list once
// DequeueCount exceeds MaxDequeueCount.
type RedisClient struct {
	rdb             *redis.Client
	log             *zap.Logger
	maxDequeueCount int
}

// NewRedisClient wraps an existing *redis.Client. maxDequeueCount is the
// dead-letter threshold from spec.md §4.2 (default 3).
func NewRedisClient(rdb *redis.Client, log *zap.Logger, maxDequeueCount int) *RedisClient {
	if maxDequeueCount <= 0 {
		maxDequeueCount = 3
	}
	return &RedisClient{rdb: rdb, log: log, maxDequeueCount: maxDequeueCount}
}

type inflightEntry struct {
	Envelope  models.Envelope `json:"envelope"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func inflightKey(queue string) string { return "queue:" + queue + ":inflight" }
func poisonKey(queue string) string   { return "queue:" + queue + ":poison" }

func (c *RedisClient) Enqueue(ctx context.Context, queue string, env models.Envelope) (string, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := c.rdb.LPush(ctx, queue, b).Err(); err != nil {
		return "", fmt.Errorf("queueclient: enqueue %s: %w", queue, err)
	}
	return env.MessageID, nil
}

func (c *RedisClient) Receive(ctx context.Context, queue string, max int, visibility time.Duration) ([]Message, error) {
	var out []Message
	for i := 0; i < max; i++ {
		raw, err := c.rdb.BRPopLPush(ctx, queue, inflightKey(queue), 50*time.Millisecond).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, fmt.Errorf("queueclient: receive %s: %w", queue, err)
		}

		var env models.Envelope
		if jsonErr := json.Unmarshal([]byte(raw), &env); jsonErr != nil {
			// Poison payload: cannot even decode the envelope. Move
			// straight to the poison queue rather than looping forever.
			_ = c.rdb.LRem(ctx, inflightKey(queue), 1, raw).Err()
			_ = c.rdb.LPush(ctx, poisonKey(queue), raw).Err()
			c.log.Warn("unparseable queue message moved to poison queue", zap.String("queue", queue))
			continue
		}
		env.DequeueCount++

		entry := inflightEntry{Envelope: env, ExpiresAt: time.Now().Add(visibility)}
		entryBytes, _ := json.Marshal(entry)
		receiptKey := "queue:" + queue + ":receipt:" + env.MessageID
		_ = c.rdb.Set(ctx, receiptKey, entryBytes, visibility).Err()

		out = append(out, Message{Envelope: env, Receipt: raw})
	}
	return out, nil
}

func (c *RedisClient) Delete(ctx context.Context, queue string, msg Message) error {
	if err := c.rdb.LRem(ctx, inflightKey(queue), 1, msg.Receipt).Err(); err != nil {
		return fmt.Errorf("queueclient: delete %s: %w", queue, err)
	}
	_ = c.rdb.Del(ctx, "queue:"+queue+":receipt:"+msg.Envelope.MessageID).Err()
	return nil
}

func (c *RedisClient) Peek(ctx context.Context, queue string, max int) ([]models.Envelope, error) {
	raws, err := c.rdb.LRange(ctx, queue, 0, int64(max-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("queueclient: peek %s: %w", queue, err)
	}
	out := make([]models.Envelope, 0, len(raws))
	for _, raw := range raws {
		var env models.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

// ReclaimExpired scans the queue's in-flight list for entries whose
// receipt key has lapsed (meaning the consumer neither deleted nor
// re-extended it within the visibility window) and requeues them — or,
// once DequeueCount exceeds the configured threshold, dead-letters them.
// It mirrors the teacher's reaper.go heartbeat-expiry sweep, generalized
// from per-worker heartbeats to per-message receipt keys.
func (c *RedisClient) ReclaimExpired(ctx context.Context, queue string) (reclaimed, deadLettered int, err error) {
	key := inflightKey(queue)
	raws, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("queueclient: reclaim scan %s: %w", queue, err)
	}
	for _, raw := range raws {
		var env models.Envelope
		if jsonErr := json.Unmarshal([]byte(raw), &env); jsonErr != nil {
			continue
		}
		receiptKey := "queue:" + queue + ":receipt:" + env.MessageID
		exists, existsErr := c.rdb.Exists(ctx, receiptKey).Result()
		if existsErr != nil || exists == 1 {
			continue // still within visibility, or transient error — leave it
		}

		if removed, remErr := c.rdb.LRem(ctx, key, 1, raw).Result(); remErr != nil || removed == 0 {
			continue
		}

		// The inflight copy still carries the count from before this
		// delivery; Receive only incremented the copy it handed out.
		env.DequeueCount++
		if env.DequeueCount > c.maxDequeueCount {
			if pushErr := c.rdb.LPush(ctx, poisonKey(queue), raw).Err(); pushErr != nil {
				c.log.Error("queueclient: dead-letter push failed", zap.String("queue", queue), zap.Error(pushErr))
				continue
			}
			deadLettered++
			continue
		}

		b, marshalErr := json.Marshal(env)
		if marshalErr != nil {
			continue
		}
		if pushErr := c.rdb.LPush(ctx, queue, b).Err(); pushErr != nil {
			c.log.Error("queueclient: requeue failed", zap.String("queue", queue), zap.Error(pushErr))
			continue
		}
		reclaimed++
	}
	return reclaimed, deadLettered, nil
}
