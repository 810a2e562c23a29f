// Copyright 2025 James Ross
package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireRespectsBurst(t *testing.T) {
	l := New()
	l.Configure("us", BucketConfig{RatePerSecond: 1000, Burst: 3, BackoffMultiplier: 2, MaxBackoff: time.Second})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "us"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
}

func TestNoteThrottledGrowsBackoffByMultiplier(t *testing.T) {
	l := New()
	l.Configure("reddit", PresetReddit)

	l.NoteThrottled("reddit", 0)
	first := l.CurrentBackoff("reddit")
	if first <= 0 {
		t.Fatalf("expected nonzero backoff after first throttle")
	}

	l.NoteThrottled("reddit", 0)
	second := l.CurrentBackoff("reddit")
	expected := time.Duration(float64(first) * PresetReddit.BackoffMultiplier)
	if second != expected {
		t.Fatalf("expected backoff %v, got %v", expected, second)
	}
}

func TestNoteThrottledCapsAtMaxBackoff(t *testing.T) {
	l := New()
	l.Configure("mastodon", BucketConfig{RatePerSecond: 1, Burst: 1, BackoffMultiplier: 10, MaxBackoff: 5 * time.Second})
	for i := 0; i < 10; i++ {
		l.NoteThrottled("mastodon", 0)
	}
	if got := l.CurrentBackoff("mastodon"); got != 5*time.Second {
		t.Fatalf("expected cap at 5s, got %v", got)
	}
}

func TestNoteThrottledHonorsRetryAfter(t *testing.T) {
	l := New()
	l.Configure("openai", PresetOpenAI)
	l.NoteThrottled("openai", 90*time.Second)
	if got := l.CurrentBackoff("openai"); got < 90*time.Second {
		t.Fatalf("expected retry_after to floor the backoff, got %v", got)
	}
}

func TestNoteSuccessResetsBackoff(t *testing.T) {
	l := New()
	l.Configure("reddit", PresetReddit)
	l.NoteThrottled("reddit", 0)
	l.NoteSuccess("reddit")
	if got := l.CurrentBackoff("reddit"); got != 0 {
		t.Fatalf("expected backoff reset to 0, got %v", got)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	if got := Backoff(20, 100*time.Millisecond, time.Second); got != time.Second {
		t.Fatalf("expected cap at 1s, got %v", got)
	}
}
