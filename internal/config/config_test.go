// Copyright 2025 James Ross
package config

import (
	"testing"

	"github.com/content-forge/pipeline/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Queue.MaxDequeueCount != 5 {
		t.Fatalf("expected default max_dequeue_count 5, got %d", cfg.Queue.MaxDequeueCount)
	}
	if cfg.ObjectStore.Bucket == "" {
		t.Fatalf("expected default bucket")
	}
	if len(cfg.Processor.LLMRegions) == 0 {
		t.Fatalf("expected default llm regions")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.VisibilityTimeout = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for visibility_timeout <= 0")
	}

	cfg = defaultConfig()
	cfg.Collector.Sources = []SourceConfig{{SourceType: models.Source("telegram")}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown source type")
	}

	cfg = defaultConfig()
	cfg.Processor.LLMRegions = nil
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty llm_regions")
	}

	cfg = defaultConfig()
	cfg.Processor.QualityMinScore = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for quality_min_score out of range")
	}

	cfg = defaultConfig()
	cfg.SitePublisher.BuildCommand = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty build_command")
	}
}
