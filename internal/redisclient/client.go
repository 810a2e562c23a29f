// Copyright 2025 James Ross
package redisclient

import (
	"runtime"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/redis/go-redis/v9"
)

// New returns a configured go-redis v9 client for the Redis instance
// backing Q1-Q4, with a pool sized to the host rather than a fixed
// constant, matching the teacher's per-CPU pool sizing.
func New(cfg config.QueueConfig) *redis.Client {
	poolSize := 10 * runtime.NumCPU()
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})
}
