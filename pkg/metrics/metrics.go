// Package metrics defines the Prometheus metric collectors used by the build
// pipeline and the query engine, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	FilesScannedTotal  prometheus.Counter
	FilesAcceptedTotal prometheus.Counter
	FilesRejectedTotal *prometheus.CounterVec
	DocsIndexedTotal   prometheus.Counter
	PostingsWritten    prometheus.Counter
	WorkerAbortsTotal  *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ShardTermCount     *prometheus.GaugeVec
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	ShardLoadsTotal    prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates all collectors and registers them on reg. A nil reg uses the
// process-wide default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		FilesScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_files_scanned_total",
				Help: "Candidate corpus files examined by the dedup gate.",
			},
		),
		FilesAcceptedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_files_accepted_total",
				Help: "Corpus files kept after encoding and duplicate filtering.",
			},
		),
		FilesRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_files_rejected_total",
				Help: "Corpus files rejected by reason (encoding, duplicate, unreadable).",
			},
			[]string{"reason"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		PostingsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_written_total",
				Help: "Postings written to partial indexes.",
			},
		),
		WorkerAbortsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_aborts_total",
				Help: "Workers that stopped early on resource exhaustion, by stage.",
			},
			[]string{"stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "build_stage_duration_seconds",
				Help:    "Wall-clock duration of each build stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
		ShardTermCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_term_count",
				Help: "Number of distinct terms per shard.",
			},
			[]string{"shard"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		ShardLoadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_shard_loads_total",
				Help: "Shard dictionaries loaded while answering queries.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Requests served by the query server.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Query server request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Requests currently being served.",
			},
		),
	}

	reg.MustRegister(
		m.FilesScannedTotal,
		m.FilesAcceptedTotal,
		m.FilesRejectedTotal,
		m.DocsIndexedTotal,
		m.PostingsWritten,
		m.WorkerAbortsTotal,
		m.StageDuration,
		m.ShardTermCount,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.ShardLoadsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Discard returns collectors registered on a private registry, for callers
// that do not export metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
