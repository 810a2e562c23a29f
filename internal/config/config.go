// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/content-forge/pipeline/internal/models"
	"github.com/spf13/viper"
)

// ObjectStoreConfig configures the S3-compatible backing store for the
// eight containers (collected-content/, seen/, leases/, locks/,
// processed-content/, markdown-content/, web/, web-backup/).
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// QueueConfig configures the Redis-backed FIFO transport shared by Q1-Q4.
type QueueConfig struct {
	Addr              string        `mapstructure:"addr"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	MaxDequeueCount   int           `mapstructure:"max_dequeue_count"`
	ReceiveWait       time.Duration `mapstructure:"receive_wait"`
}

// RateLimitConfig is one (region or source) token-bucket preset.
type RateLimitConfig struct {
	RatePerSecond     float64       `mapstructure:"rate_per_second"`
	Burst             int           `mapstructure:"burst"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
}

type CollectorConfig struct {
	ListenAddr      string                     `mapstructure:"listen_addr"`
	APIKey          string                     `mapstructure:"api_key"`
	Sources         []SourceConfig             `mapstructure:"sources"`
	RateLimits      map[string]RateLimitConfig `mapstructure:"rate_limits"`
	DedupWindow     time.Duration              `mapstructure:"dedup_window"`
	QualityMinWords int                        `mapstructure:"quality_min_words"`
}

// SourceConfig is an alias for the source template shape, shared with
// internal/models so a YAML-loaded collector.sources entry and a Q1
// wake_up payload's "sources" field decode into the same type.
type SourceConfig = models.SourceConfig

type ProcessorConfig struct {
	LeaseTTL          time.Duration              `mapstructure:"lease_ttl"`
	LLMRegions        []string                   `mapstructure:"llm_regions"`
	LLMEndpoint       string                     `mapstructure:"llm_endpoint"`
	LLMAPIKey         string                     `mapstructure:"llm_api_key"`
	RateLimits        map[string]RateLimitConfig `mapstructure:"rate_limits"`
	QualityMinScore   float64                    `mapstructure:"quality_min_score"`
	MaxRetryAttempts  int                        `mapstructure:"max_retry_attempts"`
}

type MarkdownGenConfig struct {
	BatchLockTTL time.Duration `mapstructure:"batch_lock_ttl"`
}

type SitePublisherConfig struct {
	BuildCommand   string        `mapstructure:"build_command"`
	BuildArgs      []string      `mapstructure:"build_args"`
	BuildTimeout   time.Duration `mapstructure:"build_timeout"`
	ThemeDir       string        `mapstructure:"theme_dir"`
	StagingDir     string        `mapstructure:"staging_dir"`
}

type CircuitBreakerConfig struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Endpoint         string  `mapstructure:"endpoint"`
	Environment      string  `mapstructure:"environment"`
	SamplingStrategy string  `mapstructure:"sampling_strategy"`
	SamplingRate     float64 `mapstructure:"sampling_rate"`
}

type ObservabilityConfig struct {
	MetricsPort         int           `mapstructure:"metrics_port"`
	LogLevel            string        `mapstructure:"log_level"`
	Tracing             TracingConfig `mapstructure:"tracing"`
	QueueSampleInterval time.Duration `mapstructure:"queue_sample_interval"`
}

type ReaperConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	SeenRetention   time.Duration `mapstructure:"seen_retention"`
	StaleLockAfter  time.Duration `mapstructure:"stale_lock_after"`
}

type Config struct {
	ContractVersion string              `mapstructure:"contract_version"`
	ObjectStore     ObjectStoreConfig   `mapstructure:"object_store"`
	Queue           QueueConfig         `mapstructure:"queue"`
	Collector       CollectorConfig     `mapstructure:"collector"`
	Processor       ProcessorConfig     `mapstructure:"processor"`
	MarkdownGen     MarkdownGenConfig   `mapstructure:"markdown_gen"`
	SitePublisher   SitePublisherConfig `mapstructure:"site_publisher"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Observability   ObservabilityConfig `mapstructure:"observability"`
	Reaper          ReaperConfig        `mapstructure:"reaper"`
}

func defaultConfig() *Config {
	return &Config{
		ContractVersion: "1.0.0",
		ObjectStore: ObjectStoreConfig{
			Endpoint:     "http://localhost:9000",
			Region:       "us-east-1",
			Bucket:       "content-pipeline",
			UsePathStyle: true,
		},
		Queue: QueueConfig{
			Addr:              "localhost:6379",
			VisibilityTimeout: 30 * time.Second,
			MaxDequeueCount:   5,
			ReceiveWait:       50 * time.Millisecond,
		},
		Collector: CollectorConfig{
			ListenAddr:      ":8080",
			DedupWindow:     14 * 24 * time.Hour,
			QualityMinWords: 40,
			RateLimits: map[string]RateLimitConfig{
				"reddit":   {RatePerSecond: 30.0 / 60.0, Burst: 30, BackoffMultiplier: 2.5, MaxBackoff: 600 * time.Second},
				"mastodon": {RatePerSecond: 60.0 / 60.0, Burst: 60, BackoffMultiplier: 2.0, MaxBackoff: 300 * time.Second},
			},
		},
		Processor: ProcessorConfig{
			LeaseTTL:         10 * time.Minute,
			LLMRegions:       []string{"us", "eu"},
			QualityMinScore:  0.5,
			MaxRetryAttempts: 2,
			RateLimits: map[string]RateLimitConfig{
				"openai": {RatePerSecond: 60.0 / 60.0, Burst: 60, BackoffMultiplier: 2.0, MaxBackoff: 120 * time.Second},
			},
		},
		MarkdownGen: MarkdownGenConfig{
			BatchLockTTL: 5 * time.Minute,
		},
		SitePublisher: SitePublisherConfig{
			BuildCommand: "hugo",
			BuildTimeout: 5 * time.Minute,
			ThemeDir:     "./theme",
			StagingDir:   "./staging",
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       20,
		},
		Observability: ObservabilityConfig{
			MetricsPort:         9090,
			LogLevel:            "info",
			Tracing:             TracingConfig{Enabled: false},
			QueueSampleInterval: 2 * time.Second,
		},
		Reaper: ReaperConfig{
			Interval:       30 * time.Second,
			SeenRetention:  14 * 24 * time.Hour,
			StaleLockAfter: 15 * time.Minute,
		},
	}
}

// Load reads configuration from a YAML file with environment overrides,
// exactly the defaults-then-override shape of the teacher's config.go.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("contract_version", def.ContractVersion)

	v.SetDefault("object_store.endpoint", def.ObjectStore.Endpoint)
	v.SetDefault("object_store.region", def.ObjectStore.Region)
	v.SetDefault("object_store.bucket", def.ObjectStore.Bucket)
	v.SetDefault("object_store.use_path_style", def.ObjectStore.UsePathStyle)

	v.SetDefault("queue.addr", def.Queue.Addr)
	v.SetDefault("queue.visibility_timeout", def.Queue.VisibilityTimeout)
	v.SetDefault("queue.max_dequeue_count", def.Queue.MaxDequeueCount)
	v.SetDefault("queue.receive_wait", def.Queue.ReceiveWait)

	v.SetDefault("collector.listen_addr", def.Collector.ListenAddr)
	v.SetDefault("collector.dedup_window", def.Collector.DedupWindow)
	v.SetDefault("collector.quality_min_words", def.Collector.QualityMinWords)

	v.SetDefault("processor.lease_ttl", def.Processor.LeaseTTL)
	v.SetDefault("processor.llm_regions", def.Processor.LLMRegions)
	v.SetDefault("processor.quality_min_score", def.Processor.QualityMinScore)
	v.SetDefault("processor.max_retry_attempts", def.Processor.MaxRetryAttempts)

	v.SetDefault("markdown_gen.batch_lock_ttl", def.MarkdownGen.BatchLockTTL)

	v.SetDefault("site_publisher.build_command", def.SitePublisher.BuildCommand)
	v.SetDefault("site_publisher.build_timeout", def.SitePublisher.BuildTimeout)
	v.SetDefault("site_publisher.theme_dir", def.SitePublisher.ThemeDir)
	v.SetDefault("site_publisher.staging_dir", def.SitePublisher.StagingDir)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.queue_sample_interval", def.Observability.QueueSampleInterval)

	v.SetDefault("reaper.interval", def.Reaper.Interval)
	v.SetDefault("reaper.seen_retention", def.Reaper.SeenRetention)
	v.SetDefault("reaper.stale_lock_after", def.Reaper.StaleLockAfter)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Collector.RateLimits) == 0 {
		cfg.Collector.RateLimits = def.Collector.RateLimits
	}
	if len(cfg.Processor.RateLimits) == 0 {
		cfg.Processor.RateLimits = def.Processor.RateLimits
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects config combinations that would break an invariant of
// the pipeline rather than failing at first use.
func Validate(cfg *Config) error {
	if cfg.Queue.VisibilityTimeout <= 0 {
		return fmt.Errorf("queue.visibility_timeout must be > 0")
	}
	if cfg.Queue.MaxDequeueCount < 1 {
		return fmt.Errorf("queue.max_dequeue_count must be >= 1")
	}
	if cfg.Collector.DedupWindow <= 0 {
		return fmt.Errorf("collector.dedup_window must be > 0")
	}
	for _, s := range cfg.Collector.Sources {
		switch s.SourceType {
		case models.SourceReddit, models.SourceMastodon, models.SourceRSS:
		default:
			return fmt.Errorf("collector.sources: unknown source_type %q", s.SourceType)
		}
	}
	if cfg.Processor.LeaseTTL <= 0 {
		return fmt.Errorf("processor.lease_ttl must be > 0")
	}
	if len(cfg.Processor.LLMRegions) == 0 {
		return fmt.Errorf("processor.llm_regions must be non-empty")
	}
	if cfg.Processor.QualityMinScore < 0 || cfg.Processor.QualityMinScore > 1 {
		return fmt.Errorf("processor.quality_min_score must be in [0,1]")
	}
	if cfg.MarkdownGen.BatchLockTTL <= 0 {
		return fmt.Errorf("markdown_gen.batch_lock_ttl must be > 0")
	}
	if cfg.SitePublisher.BuildCommand == "" {
		return fmt.Errorf("site_publisher.build_command must be set")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	if cfg.Reaper.Interval <= 0 {
		return fmt.Errorf("reaper.interval must be > 0")
	}
	return nil
}
