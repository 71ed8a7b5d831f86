// Package metrics provides Prometheus instrumentation for pipeline runs.
//
// A run is a short-lived batch job, so nothing is scraped. When a
// Pushgateway URL is configured the driver pushes the registry once the run
// ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name used for runs
const DefaultJob = "emojidb"

// Record outcomes
const (
	OutcomeEnriched  = "enriched"
	OutcomeUnchanged = "unchanged"
)

// Metrics holds the collectors of one pipeline run.
type Metrics struct {
	registry *prometheus.Registry

	// Records written by outcome
	RecordsTotal *prometheus.CounterVec

	// Resolutions by the source that supplied detail data
	ResolveSource *prometheus.CounterVec

	// Detail fetch attempts across all records
	ResolveAttempts prometheus.Counter

	// Upstream call latency by fetch kind
	FetchDuration *prometheus.HistogramVec

	// Full resolution latency per record
	ResolveDuration prometheus.Histogram
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emojidb_records_total",
			Help: "Total records written by outcome",
		}, []string{"outcome"}), // outcome: "enriched", "unchanged"

		ResolveSource: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emojidb_resolve_source_total",
			Help: "Total resolutions by the source of their detail data",
		}, []string{"source"}),

		ResolveAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "emojidb_resolve_attempts_total",
			Help: "Total detail page fetch attempts",
		}),

		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emojidb_fetch_duration_seconds",
			Help:    "Duration of upstream calls by kind",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}), // kind: "page", "json", "query"

		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emojidb_resolve_duration_seconds",
			Help:    "Duration of a record resolution including retries",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records the duration of one upstream call.
func (m *Metrics) ObserveFetch(kind string, d time.Duration) {
	if m != nil {
		m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// ObserveResolve records the outcome of resolving one record.
func (m *Metrics) ObserveResolve(source string, attempts int, d time.Duration) {
	if m != nil {
		m.ResolveSource.WithLabelValues(source).Inc()
		if attempts > 0 {
			m.ResolveAttempts.Add(float64(attempts))
		}
		m.ResolveDuration.Observe(d.Seconds())
	}
}

// IncrementRecord counts a written record.
func (m *Metrics) IncrementRecord(outcome string) {
	if m != nil {
		m.RecordsTotal.WithLabelValues(outcome).Inc()
	}
}

// Push sends the registry to a Pushgateway, replacing the job's previous
// metrics. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if job == "" {
		job = DefaultJob
	}

	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
