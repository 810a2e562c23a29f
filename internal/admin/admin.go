// Copyright 2025 James Ross
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/redis/go-redis/v9"
)

// allQueues lists the four FIFO queues of spec.md §6 in pipeline order.
var allQueues = []string{
	"collection-requests",
	"process-topic",
	"generate-markdown",
	"publish-site",
}

func inflightKey(queue string) string { return "queue:" + queue + ":inflight" }
func poisonKey(queue string) string   { return "queue:" + queue + ":poison" }

// StatsResult reports queue depth, in-flight count, and poison-queue
// depth for every queue.
type StatsResult struct {
	Queues   map[string]int64 `json:"queues"`
	Inflight map[string]int64 `json:"inflight"`
	Poison   map[string]int64 `json:"poison"`
}

func Stats(ctx context.Context, rdb *redis.Client) (StatsResult, error) {
	res := StatsResult{Queues: map[string]int64{}, Inflight: map[string]int64{}, Poison: map[string]int64{}}
	for _, q := range allQueues {
		n, err := rdb.LLen(ctx, q).Result()
		if err != nil {
			return res, fmt.Errorf("admin: stats llen %s: %w", q, err)
		}
		res.Queues[q] = n

		n, err = rdb.LLen(ctx, inflightKey(q)).Result()
		if err != nil {
			return res, fmt.Errorf("admin: stats inflight %s: %w", q, err)
		}
		res.Inflight[q] = n

		n, err = rdb.LLen(ctx, poisonKey(q)).Result()
		if err != nil {
			return res, fmt.Errorf("admin: stats poison %s: %w", q, err)
		}
		res.Poison[q] = n
	}
	return res, nil
}

// PeekResult is a non-consuming look at the next N envelopes due out of
// a queue.
type PeekResult struct {
	Queue string            `json:"queue"`
	Items []models.Envelope `json:"items"`
}

func Peek(ctx context.Context, rdb *redis.Client, queue string, n int64) (PeekResult, error) {
	if err := validateQueue(queue); err != nil {
		return PeekResult{}, err
	}
	if n <= 0 {
		n = 10
	}
	// Items due out next sit at the right end of the list (LPush/BRPopLPush).
	raws, err := rdb.LRange(ctx, queue, -n, -1).Result()
	if err != nil {
		return PeekResult{}, fmt.Errorf("admin: peek %s: %w", queue, err)
	}
	items := make([]models.Envelope, 0, len(raws))
	for _, raw := range raws {
		var env models.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		items = append(items, env)
	}
	return PeekResult{Queue: queue, Items: items}, nil
}

// PeekPoison is the same non-consuming look, but at a queue's poison
// list rather than its live queue.
func PeekPoison(ctx context.Context, rdb *redis.Client, queue string, n int64) (PeekResult, error) {
	if err := validateQueue(queue); err != nil {
		return PeekResult{}, err
	}
	if n <= 0 {
		n = 10
	}
	raws, err := rdb.LRange(ctx, poisonKey(queue), 0, n-1).Result()
	if err != nil {
		return PeekResult{}, fmt.Errorf("admin: peek poison %s: %w", queue, err)
	}
	items := make([]models.Envelope, 0, len(raws))
	for _, raw := range raws {
		var env models.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		items = append(items, env)
	}
	return PeekResult{Queue: poisonKey(queue), Items: items}, nil
}

// PurgeDLQ deletes the poison list for one queue.
func PurgeDLQ(ctx context.Context, rdb *redis.Client, queue string) error {
	if err := validateQueue(queue); err != nil {
		return err
	}
	return rdb.Del(ctx, poisonKey(queue)).Err()
}

func validateQueue(queue string) error {
	for _, q := range allQueues {
		if q == queue {
			return nil
		}
	}
	known := append([]string(nil), allQueues...)
	sort.Strings(known)
	return fmt.Errorf("unknown queue %q; known: %s", queue, strings.Join(known, ", "))
}

// PurgeAll deletes every queue, inflight list, poison list, and
// per-message receipt key this pipeline manages. Used in development
// and in test fixtures to reset Redis between runs, never called from
// a running service.
func PurgeAll(ctx context.Context, rdb *redis.Client) (int64, error) {
	var deleted int64
	keys := make([]string, 0, len(allQueues)*3)
	for _, q := range allQueues {
		keys = append(keys, q, inflightKey(q), poisonKey(q))
	}
	n, err := rdb.Del(ctx, keys...).Result()
	if err != nil {
		return deleted, fmt.Errorf("admin: purge all: %w", err)
	}
	deleted += n

	for _, q := range allQueues {
		pattern := "queue:" + q + ":receipt:*"
		var cursor uint64
		for {
			found, cur, scanErr := rdb.Scan(ctx, cursor, pattern, 500).Result()
			if scanErr != nil {
				return deleted, fmt.Errorf("admin: purge all scan %s: %w", pattern, scanErr)
			}
			cursor = cur
			if len(found) > 0 {
				n, delErr := rdb.Del(ctx, found...).Result()
				if delErr != nil {
					return deleted, fmt.Errorf("admin: purge all del %s: %w", pattern, delErr)
				}
				deleted += n
			}
			if cursor == 0 {
				break
			}
		}
	}
	return deleted, nil
}

// BenchResult summarizes a synthetic load of topics pushed onto
// process-topic. Unlike the teacher's Bench, this does not wait for
// completion: end-to-end latency through the LLM rewrite step depends
// on external API latency the admin tool has no business driving, so
// it measures sustained enqueue throughput only.
type BenchResult struct {
	Count      int           `json:"count"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"throughput_topics_per_sec"`
}

// Bench enqueues count synthetic TopicMetadata envelopes onto
// process-topic at the given rate (topics/sec).
func Bench(ctx context.Context, rdb *redis.Client, count, rate int) (BenchResult, error) {
	res := BenchResult{Count: count}
	if count <= 0 {
		return res, fmt.Errorf("count must be > 0")
	}
	if rate <= 0 {
		rate = 50
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := time.Now()
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
		id := fmt.Sprintf("bench-%d", i)
		topic := models.TopicMetadata{
			TopicID:     models.TopicID(models.SourceReddit, id),
			Title:       fmt.Sprintf("Bench Topic %d", i),
			Content:     "synthetic benchmark content",
			Source:      models.SourceReddit,
			CollectedAt: time.Now().UTC(),
		}
		env, err := models.NewEnvelope("admin-bench", models.OpProcessTopic, id, topic)
		if err != nil {
			return res, err
		}
		b, err := json.Marshal(env)
		if err != nil {
			return res, err
		}
		if err := rdb.LPush(ctx, "process-topic", b).Err(); err != nil {
			return res, fmt.Errorf("admin: bench enqueue: %w", err)
		}
	}
	res.Duration = time.Since(start)
	if res.Duration > 0 {
		res.Throughput = float64(count) / res.Duration.Seconds()
	}
	return res, nil
}

// ReplicaHealth is a lightweight summary suitable for a CLI status
// line, cheap enough to call on every admin invocation.
type ReplicaHealth struct {
	QueueBacklog int64 `json:"queue_backlog"`
	PoisonTotal  int64 `json:"poison_total"`
}

func Health(ctx context.Context, _ *config.Config, rdb *redis.Client) (ReplicaHealth, error) {
	stats, err := Stats(ctx, rdb)
	if err != nil {
		return ReplicaHealth{}, err
	}
	var backlog, poison int64
	for _, q := range allQueues {
		backlog += stats.Queues[q] + stats.Inflight[q]
		poison += stats.Poison[q]
	}
	return ReplicaHealth{QueueBacklog: backlog, PoisonTotal: poison}, nil
}
