// Copyright 2025 James Ross
package breaker

import (
	"testing"
	"time"
)

func TestRegistryKeepsBreakersIndependent(t *testing.T) {
	r := NewRegistry(2*time.Second, 200*time.Millisecond, 0.5, 2)

	us := r.For("openai-us")
	eu := r.For("openai-eu")

	us.Record(false)
	us.Record(false)
	time.Sleep(10 * time.Millisecond)

	if us.State() != Open {
		t.Fatalf("expected us breaker open")
	}
	if eu.State() != Closed {
		t.Fatalf("expected eu breaker unaffected, got %v", eu.State())
	}

	if r.For("openai-us") != us {
		t.Fatalf("expected For to return the same breaker instance for a repeated key")
	}

	states := r.States()
	if states["openai-us"] != Open || states["openai-eu"] != Closed {
		t.Fatalf("unexpected states snapshot: %+v", states)
	}
}
