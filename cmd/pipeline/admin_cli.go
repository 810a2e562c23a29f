// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/content-forge/pipeline/internal/admin"
	"github.com/content-forge/pipeline/internal/obs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func runAdmin(ctx context.Context, rdb *redis.Client, log *zap.Logger, cmd, queue, messageIDs string, n int, yes bool, benchCount, benchRate int) {
	switch cmd {
	case "stats":
		res, err := admin.Stats(ctx, rdb)
		printOrFatal(log, "admin stats", res, err)
	case "peek":
		requireQueue(log, queue)
		res, err := admin.Peek(ctx, rdb, queue, int64(n))
		printOrFatal(log, "admin peek", res, err)
	case "peek-poison":
		requireQueue(log, queue)
		res, err := admin.PeekPoison(ctx, rdb, queue, int64(n))
		printOrFatal(log, "admin peek-poison", res, err)
	case "purge-dlq":
		requireQueue(log, queue)
		requireYes(log, yes)
		if err := admin.PurgeDLQ(ctx, rdb, queue); err != nil {
			log.Fatal("admin purge-dlq error", obs.Err(err))
		}
		fmt.Println("dead letter queue purged")
	case "purge-all":
		requireYes(log, yes)
		purged, err := admin.PurgeAll(ctx, rdb)
		printOrFatal(log, "admin purge-all", struct {
			Purged int64 `json:"purged"`
		}{Purged: purged}, err)
	case "bench":
		res, err := admin.Bench(ctx, rdb, benchCount, benchRate)
		printOrFatal(log, "admin bench", res, err)
	case "health":
		// health has no queue argument, so it loads no config beyond rdb.
		cfg, err := admin.Health(ctx, nil, rdb)
		printOrFatal(log, "admin health", cfg, err)
	case "dlq-list":
		requireQueue(log, queue)
		items, cursor, err := admin.DLQList(ctx, rdb, queue, "", n)
		printOrFatal(log, "admin dlq-list", struct {
			Items      any    `json:"items"`
			NextCursor string `json:"next_cursor"`
		}{Items: items, NextCursor: cursor}, err)
	case "dlq-requeue":
		requireQueue(log, queue)
		requireYes(log, yes)
		moved, err := admin.DLQRequeue(ctx, rdb, queue, splitIDs(messageIDs))
		printOrFatal(log, "admin dlq-requeue", struct {
			Moved int `json:"moved"`
		}{Moved: moved}, err)
	case "dlq-purge":
		requireQueue(log, queue)
		requireYes(log, yes)
		purged, err := admin.DLQPurge(ctx, rdb, queue, splitIDs(messageIDs))
		printOrFatal(log, "admin dlq-purge", struct {
			Purged int `json:"purged"`
		}{Purged: purged}, err)
	default:
		log.Fatal("unknown admin command", obs.String("cmd", cmd))
	}
}

func splitIDs(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requireQueue(log *zap.Logger, queue string) {
	if queue == "" {
		log.Fatal("this admin command requires --queue")
	}
}

func requireYes(log *zap.Logger, yes bool) {
	if !yes {
		log.Fatal("refusing a destructive admin command without --yes")
	}
}

func printOrFatal(log *zap.Logger, label string, v any, err error) {
	if err != nil {
		log.Fatal(label+" error", obs.Err(err))
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
