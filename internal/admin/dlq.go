// Copyright 2025 James Ross
package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/redis/go-redis/v9"
)

// DLQItem is one poisoned envelope, carried whole (payload included),
// for a TUI or CLI to list and act on.
type DLQItem struct {
	MessageID string          `json:"message_id"`
	Queue     string          `json:"queue"`
	Operation string          `json:"operation"`
	Attempts  int             `json:"attempts"`
	Envelope  models.Envelope `json:"envelope"`
}

// DLQList returns a page of a queue's poison list. The cursor is a
// decimal offset into the list, opaque to callers beyond round-tripping
// it into the next call.
func DLQList(ctx context.Context, rdb *redis.Client, queue, cursor string, limit int) ([]DLQItem, string, error) {
	if err := validateQueue(queue); err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var offset int64
	if cursor != "" {
		if _, err := fmt.Sscan(cursor, &offset); err != nil || offset < 0 {
			offset = 0
		}
	}

	raws, err := rdb.LRange(ctx, poisonKey(queue), offset, offset+int64(limit)-1).Result()
	if err != nil {
		return nil, "", fmt.Errorf("admin: dlq list %s: %w", queue, err)
	}
	out := make([]DLQItem, 0, len(raws))
	for _, raw := range raws {
		var env models.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		out = append(out, DLQItem{
			MessageID: env.MessageID,
			Queue:     queue,
			Operation: string(env.Operation),
			Attempts:  env.DequeueCount,
			Envelope:  env,
		})
	}
	if int64(len(raws)) < int64(limit) {
		return out, "", nil
	}
	return out, fmt.Sprintf("%d", offset+int64(len(raws))), nil
}

// DLQRequeue moves the named message IDs from queue's poison list back
// onto the live queue, for operator-triggered retry after fixing
// whatever made them permanently fail (an LLM outage, a bad config
// value).
func DLQRequeue(ctx context.Context, rdb *redis.Client, queue string, messageIDs []string) (int, error) {
	if err := validateQueue(queue); err != nil {
		return 0, err
	}
	return moveMatching(ctx, rdb, poisonKey(queue), queue, messageIDs)
}

// DLQPurge permanently deletes the named message IDs from queue's
// poison list.
func DLQPurge(ctx context.Context, rdb *redis.Client, queue string, messageIDs []string) (int, error) {
	if err := validateQueue(queue); err != nil {
		return 0, err
	}
	return moveMatching(ctx, rdb, poisonKey(queue), "", messageIDs)
}

// moveMatching scans srcKey in chunks, removing entries whose
// MessageID is in ids and, if dstKey is non-empty, pushing them there.
// An empty dstKey means delete-only (purge).
func moveMatching(ctx context.Context, rdb *redis.Client, srcKey, dstKey string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}

	const chunk = 500
	moved := 0
	var start int64
	for {
		batch, err := rdb.LRange(ctx, srcKey, start, start+chunk-1).Result()
		if err != nil {
			return moved, fmt.Errorf("admin: scan %s: %w", srcKey, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, raw := range batch {
			var env models.Envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				continue
			}
			if _, ok := wanted[env.MessageID]; !ok {
				continue
			}
			if _, err := rdb.LRem(ctx, srcKey, 1, raw).Result(); err != nil {
				return moved, fmt.Errorf("admin: remove from %s: %w", srcKey, err)
			}
			if dstKey != "" {
				if err := rdb.LPush(ctx, dstKey, raw).Err(); err != nil {
					return moved, fmt.Errorf("admin: push to %s: %w", dstKey, err)
				}
			}
			moved++
		}
		if len(batch) < chunk {
			break
		}
		start += chunk
	}
	return moved, nil
}
