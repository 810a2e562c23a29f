// Copyright 2025 James Ross
package sitepublisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"go.uber.org/zap"
)

// SitePublisher builds the static site from markdown-content/ and
// uploads the output over the live web root one file at a time. The
// replacement is not atomic: while uploads run, web/ holds a mix of old
// and new files, and objects the new build does not produce are left in
// place. It is single-replica by
// design (spec.md §4.7): concurrent builds would corrupt the output,
// so callers MUST NOT run more than one instance against the same web/
// container at a time.
type SitePublisher struct {
	store objectstore.Store
	cfg   config.SitePublisherConfig
	log   *zap.Logger
}

func New(store objectstore.Store, cfg config.SitePublisherConfig, log *zap.Logger) *SitePublisher {
	return &SitePublisher{store: store, cfg: cfg, log: log}
}

// HandlePublishSiteRequest implements spec.md §4.7's algorithm end to
// end. The caller deletes the Q4 message only if this returns nil,
// matching step 7's "delete only after all uploads succeed".
func (s *SitePublisher) HandlePublishSiteRequest(ctx context.Context, env models.Envelope) error {
	var payload models.PublishSiteRequestPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	if err := s.snapshotWebRoot(ctx, timestamp); err != nil {
		return fmt.Errorf("sitepublisher: snapshot failed: %w", err)
	}

	buildRoot, err := os.MkdirTemp("", "sitepublisher-build-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(buildRoot)

	if err := s.materializeMarkdown(ctx, buildRoot); err != nil {
		return fmt.Errorf("sitepublisher: materializing markdown failed: %w", err)
	}
	if err := copyDir(s.cfg.ThemeDir, buildRoot); err != nil {
		return fmt.Errorf("sitepublisher: copying theme failed: %w", err)
	}

	result, err := runBuild(ctx, s.cfg, buildRoot)
	if err != nil {
		s.log.Error("site build failed, web root left untouched",
			zap.String("batch_id", payload.BatchID),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr))
		return err
	}
	s.log.Info("site build succeeded",
		zap.String("batch_id", payload.BatchID),
		zap.Duration("duration", result.Duration))

	outputDir := filepath.Join(buildRoot, s.cfg.StagingDir)
	if err := s.uploadBuildOutput(ctx, outputDir); err != nil {
		return fmt.Errorf("sitepublisher: uploading build output failed: %w", err)
	}
	return nil
}

// snapshotWebRoot copies every object under web/ to web-backup/{timestamp}/,
// cheap inside the object store per spec.md §4.7 step 2.
func (s *SitePublisher) snapshotWebRoot(ctx context.Context, timestamp string) error {
	infos, err := s.store.List(ctx, objectstore.ContainerWeb, "", time.Time{})
	if err != nil {
		return err
	}
	for _, info := range infos {
		dst := timestamp + "/" + info.Path
		if err := s.store.Copy(ctx, objectstore.ContainerWeb, info.Path, objectstore.ContainerWebBackup, dst); err != nil {
			return err
		}
	}
	return nil
}

// materializeMarkdown downloads every markdown-content/ blob into a
// local directory tree the build command can read, per spec.md §4.7
// step 3.
func (s *SitePublisher) materializeMarkdown(ctx context.Context, buildRoot string) error {
	infos, err := s.store.List(ctx, objectstore.ContainerMarkdownContent, "", time.Time{})
	if err != nil {
		return err
	}
	for _, info := range infos {
		content, err := s.store.DownloadText(ctx, objectstore.ContainerMarkdownContent, info.Path)
		if err != nil {
			return err
		}
		dst := filepath.Join(buildRoot, "content", filepath.FromSlash(info.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// uploadBuildOutput walks the generator's output directory and uploads
// every file to web/ with a content-type derived from its extension,
// per spec.md §4.7 step 6.
func (s *SitePublisher) uploadBuildOutput(ctx context.Context, outputDir string) error {
	return filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		dst := filepath.ToSlash(rel)
		return s.store.UploadBinary(ctx, objectstore.ContainerWeb, dst, data, contentTypeFor(dst))
	})
}

// copyDir recursively copies src into dst, preserving relative
// structure. Used to bring the baked-in theme/config files into the
// temporary build root alongside materialized markdown. A missing src
// (no theme configured) is not an error.
func copyDir(src, dst string) error {
	if src == "" {
		return nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
