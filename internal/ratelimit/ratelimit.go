// Copyright 2025 James Ross
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketConfig is one (region, source) token-bucket preset, per spec.md §4.3.
type BucketConfig struct {
	RatePerSecond     float64
	Burst             int
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Presets from spec.md §4.3.
var (
	PresetReddit = BucketConfig{
		RatePerSecond:     30.0 / 60.0,
		Burst:             30,
		BackoffMultiplier: 2.5,
		MaxBackoff:        600 * time.Second,
	}
	PresetMastodon = BucketConfig{
		RatePerSecond:     60.0 / 60.0,
		Burst:             60,
		BackoffMultiplier: 2.0,
		MaxBackoff:        300 * time.Second,
	}
	PresetOpenAI = BucketConfig{
		RatePerSecond:     60.0 / 60.0,
		Burst:             60,
		BackoffMultiplier: 2.0,
		MaxBackoff:        120 * time.Second,
	}
)

// bucket pairs an x/time/rate.Limiter (the token-bucket admission control)
// with the exponential-backoff state that note_throttled/note_success
// manage on top of it, mirroring how the teacher's CircuitBreaker tracks
// state transitions separately from the thing it is gating.
type bucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	cfg     BucketConfig
	backoff time.Duration // current additional delay, 0 when healthy
}

// Limiter is the RateLimiter contract of spec.md §4.3: per-(region,
// source) token buckets with exponential backoff on throttling.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	configs map[string]BucketConfig
}

// New returns a Limiter with no buckets configured; call Configure to
// register a preset per region/source key before first use.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		configs: make(map[string]BucketConfig),
	}
}

// Configure registers (or replaces) the bucket config for a region key.
func (l *Limiter) Configure(region string, cfg BucketConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[region] = cfg
	delete(l.buckets, region) // next Acquire rebuilds with the new config
}

func (l *Limiter) bucketFor(region string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[region]; ok {
		return b
	}
	cfg, ok := l.configs[region]
	if !ok {
		cfg = PresetOpenAI
	}
	b := &bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
	}
	l.buckets[region] = b
	return b
}

// Acquire suspends until a token is available and any active backoff has
// elapsed, or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, region string) error {
	b := l.bucketFor(region)

	b.mu.Lock()
	wait := b.backoff
	b.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return b.limiter.Wait(ctx)
}

// NoteThrottled multiplies the current backoff by BackoffMultiplier
// (capped at MaxBackoff). If retryAfter is non-zero, the new backoff is
// at least retryAfter, per spec.md §4.3.
func (l *Limiter) NoteThrottled(region string, retryAfter time.Duration) {
	b := l.bucketFor(region)
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.backoff * time.Duration(b.cfg.BackoffMultiplier*1000) / 1000
	if next <= 0 {
		// First throttling notice: seed from a single base interval so
		// the very next acquire already observes a delay.
		next = time.Duration(float64(time.Second) / maxFloat(b.cfg.RatePerSecond, 0.001))
	}
	if retryAfter > next {
		next = retryAfter
	}
	if next > b.cfg.MaxBackoff {
		next = b.cfg.MaxBackoff
	}
	b.backoff = next
}

// NoteSuccess resets backoff to zero.
func (l *Limiter) NoteSuccess(region string) {
	b := l.bucketFor(region)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backoff = 0
}

// CurrentBackoff returns the bucket's present backoff delay, for tests
// and diagnostics.
func (l *Limiter) CurrentBackoff(region string) time.Duration {
	b := l.bucketFor(region)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backoff
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
