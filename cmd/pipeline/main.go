// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/content-forge/pipeline/internal/breaker"
	"github.com/content-forge/pipeline/internal/collector"
	"github.com/content-forge/pipeline/internal/collector/sources"
	"github.com/content-forge/pipeline/internal/config"
	"github.com/content-forge/pipeline/internal/markdowngen"
	"github.com/content-forge/pipeline/internal/models"
	"github.com/content-forge/pipeline/internal/objectstore"
	"github.com/content-forge/pipeline/internal/obs"
	"github.com/content-forge/pipeline/internal/processor"
	"github.com/content-forge/pipeline/internal/processor/llm"
	"github.com/content-forge/pipeline/internal/queueclient"
	"github.com/content-forge/pipeline/internal/ratelimit"
	"github.com/content-forge/pipeline/internal/reaper"
	"github.com/content-forge/pipeline/internal/redisclient"
	"github.com/content-forge/pipeline/internal/sitepublisher"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var adminCmd string
	var adminQueue string
	var adminMessageIDs string
	var adminN int
	var adminYes bool
	var benchCount int
	var benchRate int
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "all", "Role to run: collector|processor|markdowngen|sitepublisher|reaper|admin|all")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&adminCmd, "admin-cmd", "", "Admin command: stats|peek|peek-poison|purge-dlq|purge-all|bench|health|dlq-list|dlq-requeue|dlq-purge")
	fs.StringVar(&adminQueue, "queue", "", "Queue name for admin peek/purge/dlq commands")
	fs.StringVar(&adminMessageIDs, "message-ids", "", "Comma-separated message IDs for dlq-requeue/dlq-purge")
	fs.IntVar(&adminN, "n", 10, "Number of items for admin peek/dlq-list")
	fs.BoolVar(&adminYes, "yes", false, "Automatic yes to prompts (dangerous operations)")
	fs.IntVar(&benchCount, "bench-count", 1000, "Admin bench: number of envelopes to enqueue")
	fs.IntVar(&benchRate, "bench-rate", 500, "Admin bench: enqueue rate envelopes/sec")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	rdb := redisclient.New(cfg.Queue)
	defer rdb.Close()

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init object store", obs.Err(err))
	}

	queue := queueclient.NewRedisClient(rdb, logger, cfg.Queue.MaxDequeueCount)

	if role != "admin" {
		readyCheck := func(c context.Context) error {
			_, err := rdb.Ping(c).Result()
			return err
		}
		httpSrv := obs.StartHTTPServer(cfg, readyCheck)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	if role != "admin" {
		obs.StartQueueLengthUpdater(ctx, cfg, rdb, []string{
			queueclient.Q1CollectionRequests,
			queueclient.Q2ProcessTopic,
			queueclient.Q3GenerateMarkdown,
			queueclient.Q4PublishSite,
		}, logger)
	}

	replicaID := replicaID()

	switch role {
	case "collector":
		runCollectorRole(ctx, cfg, store, queue, logger)
	case "processor":
		rep := reaper.New(cfg.Reaper, store, queue, logger)
		go rep.Run(ctx)
		runProcessorRole(ctx, replicaID, cfg, store, queue, logger)
	case "markdowngen":
		runMarkdownGenRole(ctx, replicaID, cfg, store, queue, logger)
	case "sitepublisher":
		runSitePublisherRole(ctx, cfg, store, queue, logger)
	case "reaper":
		reaper.New(cfg.Reaper, store, queue, logger).Run(ctx)
	case "all":
		rep := reaper.New(cfg.Reaper, store, queue, logger)
		go rep.Run(ctx)
		var wg sync.WaitGroup
		wg.Add(4)
		go func() { defer wg.Done(); runCollectorRole(ctx, cfg, store, queue, logger) }()
		go func() { defer wg.Done(); runProcessorRole(ctx, replicaID, cfg, store, queue, logger) }()
		go func() { defer wg.Done(); runMarkdownGenRole(ctx, replicaID, cfg, store, queue, logger) }()
		go func() { defer wg.Done(); runSitePublisherRole(ctx, cfg, store, queue, logger) }()
		wg.Wait()
	case "admin":
		runAdmin(ctx, rdb, logger, adminCmd, adminQueue, adminMessageIDs, adminN, adminYes, benchCount, benchRate)
		return
	default:
		logger.Fatal("unknown role", obs.String("role", role))
	}
}

func replicaID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}

func newStore(cfg *config.Config, log *zap.Logger) (objectstore.Store, error) {
	return objectstore.NewS3Store(objectstore.S3Config{
		Bucket:          cfg.ObjectStore.Bucket,
		Region:          cfg.ObjectStore.Region,
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		ForcePathStyle:  cfg.ObjectStore.UsePathStyle,
	}, log)
}

// runCollectorRole serves the manual-trigger HTTP endpoint alongside a
// Q1 wake_up consumer loop, per spec.md §4.5: either path may start a
// collection pass, and both share one Collector value.
func runCollectorRole(ctx context.Context, cfg *config.Config, store objectstore.Store, queue queueclient.Client, log *zap.Logger) {
	limiter := ratelimit.New()
	for region, rl := range cfg.Collector.RateLimits {
		limiter.Configure(region, ratelimit.BucketConfig{
			RatePerSecond:     rl.RatePerSecond,
			Burst:             rl.Burst,
			BackoffMultiplier: rl.BackoffMultiplier,
			MaxBackoff:        rl.MaxBackoff,
		})
	}
	breakers := breaker.NewRegistry(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod,
		cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	readers := map[models.Source]sources.Reader{
		models.SourceReddit:   &sources.RedditReader{HTTPClient: httpClient, Limiter: limiter, Breaker: breakers.For("reddit")},
		models.SourceMastodon: &sources.MastodonReader{HTTPClient: httpClient, Limiter: limiter, Breaker: breakers.For("mastodon")},
		models.SourceRSS:      &sources.RSSReader{HTTPClient: httpClient, Limiter: limiter, Breaker: breakers.For("rss")},
	}

	c := collector.New(cfg, store, queue, limiter, breakers, readers, log)

	srv := &http.Server{Addr: cfg.Collector.ListenAddr, Handler: c.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("collector: http server error", obs.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	consumeQueue(ctx, queue, queueclient.Q1CollectionRequests, cfg.Queue.VisibilityTimeout, cfg.Queue.ReceiveWait, log,
		func(ctx context.Context, env models.Envelope) bool {
			if err := c.HandleWakeUp(ctx, env); err != nil {
				log.Error("collector: wake_up handling failed", obs.Err(err))
			}
			return true
		})
}

func runProcessorRole(ctx context.Context, replicaID string, cfg *config.Config, store objectstore.Store, queue queueclient.Client, log *zap.Logger) {
	limiter := ratelimit.New()
	for region, rl := range cfg.Processor.RateLimits {
		limiter.Configure(region, ratelimit.BucketConfig{
			RatePerSecond:     rl.RatePerSecond,
			Burst:             rl.Burst,
			BackoffMultiplier: rl.BackoffMultiplier,
			MaxBackoff:        rl.MaxBackoff,
		})
	}
	breakers := breaker.NewRegistry(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod,
		cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
	llmClient := llm.NewHTTPClient(cfg.Processor.LLMEndpoint, cfg.Processor.LLMAPIKey, "gpt-4o-mini")

	p := processor.New(replicaID, store, queue, limiter, breakers, llmClient,
		cfg.Processor.LeaseTTL, cfg.Processor.MaxRetryAttempts, cfg.Processor.QualityMinScore,
		cfg.Processor.LLMRegions, log)

	consumeQueue(ctx, queue, queueclient.Q2ProcessTopic, cfg.Queue.VisibilityTimeout, cfg.Queue.ReceiveWait, log,
		func(ctx context.Context, env models.Envelope) bool {
			outcome, err := p.HandleProcessTopic(ctx, env)
			if err != nil {
				log.Warn("processor: handling failed", obs.Err(err))
			}
			switch outcome {
			case processor.OutcomeCompleted, processor.OutcomeAnotherReplicaOwns, processor.OutcomeAlreadyProcessed:
				return true
			default:
				// Transient failures and poison messages are left in
				// flight; the reaper's visibility sweep requeues or
				// dead-letters them once the dequeue count is known.
				return false
			}
		})
}

// runMarkdownGenRole consumes Q3 one message at a time. A batch's
// markdown count is tracked per-replica, best-effort, for the
// informational MarkdownCount field on the Q4 trigger payload; the
// exactly-once publish guarantee itself comes from MaybeTriggerPublish's
// conditional-create lock, not from this count.
func runMarkdownGenRole(ctx context.Context, replicaID string, cfg *config.Config, store objectstore.Store, queue queueclient.Client, log *zap.Logger) {
	g := markdowngen.New(replicaID, store, queue, log)

	var mu sync.Mutex
	counts := make(map[string]int)

	consumeQueue(ctx, queue, queueclient.Q3GenerateMarkdown, cfg.Queue.VisibilityTimeout, cfg.Queue.ReceiveWait, log,
		func(ctx context.Context, env models.Envelope) bool {
			batchID, err := g.HandleGenerateMarkdown(ctx, env)
			if err != nil {
				log.Warn("markdowngen: handling failed", obs.Err(err))
				return false
			}

			mu.Lock()
			counts[batchID]++
			count := counts[batchID]
			mu.Unlock()

			remaining, err := queue.Peek(ctx, queueclient.Q3GenerateMarkdown, 1)
			if err != nil {
				log.Warn("markdowngen: post-render queue peek failed", obs.Err(err))
				return true
			}
			if len(remaining) > 0 {
				return true
			}
			if _, err := g.MaybeTriggerPublish(ctx, batchID, count); err != nil {
				log.Error("markdowngen: publish trigger failed", obs.BatchID(batchID), obs.Err(err))
			}
			return true
		})
}

func runSitePublisherRole(ctx context.Context, cfg *config.Config, store objectstore.Store, queue queueclient.Client, log *zap.Logger) {
	s := sitepublisher.New(store, cfg.SitePublisher, log)

	consumeQueue(ctx, queue, queueclient.Q4PublishSite, cfg.Queue.VisibilityTimeout, cfg.Queue.ReceiveWait, log,
		func(ctx context.Context, env models.Envelope) bool {
			if err := s.HandlePublishSiteRequest(ctx, env); err != nil {
				log.Error("sitepublisher: build failed", obs.Err(err))
				return false
			}
			obs.SitesPublished.Inc()
			return true
		})
}

// consumeQueue runs the receive-dispatch-delete loop every queue
// consumer in this pipeline shares: handle reports whether the message
// should be deleted; returning false leaves it in flight for the
// reaper's reclaim sweep to requeue or dead-letter.
func consumeQueue(ctx context.Context, queue queueclient.Client, queueName string, visibility, receiveWait time.Duration, log *zap.Logger, handle func(context.Context, models.Envelope) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := queue.Receive(ctx, queueName, 1, visibility)
		if err != nil {
			log.Warn("queue receive failed", obs.String("queue", queueName), obs.Err(err))
			time.Sleep(receiveWait)
			continue
		}
		if len(msgs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveWait):
			}
			continue
		}

		for _, msg := range msgs {
			if handle(ctx, msg.Envelope) {
				if err := queue.Delete(ctx, queueName, msg); err != nil {
					log.Warn("queue delete failed", obs.String("queue", queueName), obs.Err(err))
				}
			}
		}
	}
}
