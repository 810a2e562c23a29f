// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/content-forge/pipeline/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TopicsCollected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topics_collected_total",
		Help: "Total number of topics written by the collector, by source",
	}, []string{"source"})
	TopicsDeduped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topics_deduped_total",
		Help: "Total number of candidate items dropped as duplicates, by source",
	}, []string{"source"})
	TopicsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topics_rejected_total",
		Help: "Total number of candidate items rejected by the quality gate, by source",
	}, []string{"source"})
	ArticlesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "articles_processed_total",
		Help: "Total number of topics successfully rewritten into articles",
	})
	ArticlesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "articles_failed_total",
		Help: "Total number of processing failures, by error kind",
	}, []string{"kind"})
	ProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "article_processing_duration_seconds",
		Help:    "Histogram of topic-to-article processing durations",
		Buckets: prometheus.DefBuckets,
	})
	QueueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_length",
		Help: "Current length of pipeline queues",
	}, []string{"queue"})
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open, by breaker key",
	}, []string{"key"})
	CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Count of times a breaker transitioned to Open, by key",
	}, []string{"key"})
	ReaperRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reaper_recovered_total",
		Help: "Total number of messages reclaimed from expired in-flight leases",
	})
	ReaperDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reaper_dead_lettered_total",
		Help: "Total number of messages routed to a dead-letter queue by the reaper",
	})
	SitesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sites_published_total",
		Help: "Total number of successful site publish cycles",
	})
)

func init() {
	prometheus.MustRegister(TopicsCollected, TopicsDeduped, TopicsRejected, ArticlesProcessed,
		ArticlesFailed, ProcessingDuration, QueueLength, CircuitBreakerState, CircuitBreakerTrips,
		ReaperRecovered, ReaperDeadLettered, SitesPublished)
}

// StartMetricsServer exposes /metrics alone; StartHTTPServer is preferred
// since it also registers health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
