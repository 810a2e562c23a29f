// Copyright 2025 James Ross
package objectstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreConditionalCreate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	type lease struct{ Holder string }

	if err := s.UploadJSON(ctx, ContainerLeases, "topic_a.lease", lease{Holder: "p1"}, true); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.UploadJSON(ctx, ContainerLeases, "topic_a.lease", lease{Holder: "p2"}, true)
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var got lease
	if err := s.DownloadJSON(ctx, ContainerLeases, "topic_a.lease", &got); err != nil {
		t.Fatalf("download: %v", err)
	}
	if got.Holder != "p1" {
		t.Fatalf("expected holder p1, got %q", got.Holder)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.DownloadText(ctx, ContainerWeb, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.UploadText(ctx, ContainerSeen, "2025/01/01/aaa.json", "{}", "application/json")
	_ = s.UploadText(ctx, ContainerSeen, "2025/01/02/bbb.json", "{}", "application/json")
	_ = s.UploadText(ctx, ContainerMarkdownContent, "articles/2025/01/x.md", "# x", "text/markdown")

	items, err := s.List(ctx, ContainerSeen, "2025/01/", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Delete(ctx, ContainerWeb, "nope"); err != nil {
		t.Fatalf("delete absent should be idempotent: %v", err)
	}
}

func TestMemoryStoreCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.UploadText(ctx, ContainerWeb, "index.html", "<html/>", "text/html")
	if err := s.Copy(ctx, ContainerWeb, "index.html", ContainerWebBackup, "20250101/index.html"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := s.DownloadText(ctx, ContainerWebBackup, "20250101/index.html")
	if err != nil || got != "<html/>" {
		t.Fatalf("unexpected copy result: %q err=%v", got, err)
	}
}
