// Copyright 2025 James Ross
package sitepublisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"go.uber.org/zap"
)

// fakeGeneratorScript writes a tiny shell script that copies its content/
// directory into a staging/ directory, standing in for a real static-site
// generator without depending on one being installed.
func fakeGeneratorScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "build.sh")
	body := "#!/bin/sh\nset -e\nmkdir -p staging\ncp -R content/. staging/\necho hello > staging/index.html\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func testConfig(t *testing.T) config.SitePublisherConfig {
	return config.SitePublisherConfig{
		BuildCommand: "sh",
		BuildArgs:    []string{fakeGeneratorScript(t)},
		BuildTimeout: 10 * time.Second,
		ThemeDir:     "",
		StagingDir:   "staging",
	}
}

func TestHandlePublishSiteRequestUploadsBuildOutput(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()

	if err := store.UploadText(ctx, objectstore.ContainerMarkdownContent, "articles/2024/10/20241008-a-big-idea.md", "---\ntitle: \"A\"\n---\n\nBody.\n", "text/markdown"); err != nil {
		t.Fatal(err)
	}
	if err := store.UploadText(ctx, objectstore.ContainerWeb, "index.html", "old home page", "text/html"); err != nil {
		t.Fatal(err)
	}

	sp := New(store, testConfig(t), zap.NewNop())

	payload := models.PublishSiteRequestPayload{BatchID: "batch-1", MarkdownCount: 1, MarkdownContainer: objectstore.ContainerMarkdownContent}
	env, err := models.NewEnvelope("markdowngen", models.OpPublishSiteReq, "batch-1", payload)
	if err != nil {
		t.Fatal(err)
	}

	if err := sp.HandlePublishSiteRequest(ctx, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := store.DownloadText(ctx, objectstore.ContainerWeb, "index.html")
	if err != nil {
		t.Fatalf("expected uploaded index.html: %v", err)
	}
	if content != "hello\n" {
		t.Fatalf("expected build output to overwrite index.html, got %q", content)
	}

	if _, err := store.DownloadText(ctx, objectstore.ContainerWeb, "articles/2024/10/20241008-a-big-idea.md"); err != nil {
		t.Fatalf("expected materialized markdown to round-trip into the build output: %v", err)
	}

	backups, err := store.List(ctx, objectstore.ContainerWebBackup, "", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected 1 backed-up object, got %d", len(backups))
	}
	found := false
	for _, b := range backups {
		if filepath.Base(b.Path) == "index.html" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected backup of the old index.html, got %+v", backups)
	}
}

func TestHandlePublishSiteRequestLeavesWebUntouchedOnBuildFailure(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()

	if err := store.UploadText(ctx, objectstore.ContainerWeb, "index.html", "old home page", "text/html"); err != nil {
		t.Fatal(err)
	}

	cfg := config.SitePublisherConfig{
		BuildCommand: "sh",
		BuildArgs:    []string{"-c", "exit 1"},
		BuildTimeout: 10 * time.Second,
		StagingDir:   "staging",
	}
	sp := New(store, cfg, zap.NewNop())

	payload := models.PublishSiteRequestPayload{BatchID: "batch-1", MarkdownCount: 0, MarkdownContainer: objectstore.ContainerMarkdownContent}
	env, err := models.NewEnvelope("markdowngen", models.OpPublishSiteReq, "batch-1", payload)
	if err != nil {
		t.Fatal(err)
	}

	if err := sp.HandlePublishSiteRequest(ctx, env); err == nil {
		t.Fatalf("expected build failure to surface as an error")
	}

	content, err := store.DownloadText(ctx, objectstore.ContainerWeb, "index.html")
	if err != nil {
		t.Fatalf("expected web/ to remain untouched: %v", err)
	}
	if content != "old home page" {
		t.Fatalf("expected web/ content unchanged after build failure, got %q", content)
	}
}
