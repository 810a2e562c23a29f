// Copyright 2025 James Ross
package ratelimit

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Backoff computes a capped exponential delay for the given attempt
// number (1-indexed), generalizing the teacher's worker.go backoff()
// helper. Processor's LLM retry loop uses it through JitteredBackoff;
// Limiter.NoteThrottled computes its own backoff.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := time.Duration(1<<uint(attempt-1)) * base
	if d <= 0 || d > max {
		return max
	}
	return d
}

// JitteredBackoff adds up to +/-25% jitter to Backoff's result, for the
// transient-I/O retry path of spec.md §7 ("jittered retry up to N=2").
func JitteredBackoff(attempt int, base, max time.Duration) time.Duration {
	d := Backoff(attempt, base, max)
	jitterRange := d / 4
	if jitterRange <= 0 {
		return d
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(2*jitterRange)))
	if err != nil {
		return d
	}
	return d - jitterRange + time.Duration(n.Int64())
}
