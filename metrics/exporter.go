// Package metrics exposes sampling engine counters to Prometheus.
//
// The Exporter is a prometheus.Collector that reads the engine's
// shared Stats handle on every scrape. Nothing is recorded on the hot
// path; the engine's own relaxed atomics are the source of truth.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justapithecus/sift/sample"
)

// Exporter bridges a sample.Stats handle into Prometheus counters.
type Exporter struct {
	stats *sample.Stats

	received *prometheus.Desc
	sampled  *prometheus.Desc
	dropped  *prometheus.Desc
}

// NewExporter creates an exporter for the given stats handle.
func NewExporter(stats *sample.Stats) *Exporter {
	return &Exporter{
		stats: stats,
		received: prometheus.NewDesc(
			"sift_events_received_total",
			"Events that matched at least one budget filter",
			nil, nil,
		),
		sampled: prometheus.NewDesc(
			"sift_events_sampled_total",
			"Events accepted into a reservoir",
			nil, nil,
		),
		dropped: prometheus.NewDesc(
			"sift_events_dropped_total",
			"Events evicted by every matching budget or failed to format",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.received
	ch <- e.sampled
	ch <- e.dropped
}

// Collect implements prometheus.Collector by snapshotting the engine
// counters.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(e.received, prometheus.CounterValue, float64(snap.Received))
	ch <- prometheus.MustNewConstMetric(e.sampled, prometheus.CounterValue, float64(snap.Sampled))
	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(snap.Dropped))
}

// Verify Exporter implements prometheus.Collector.
var _ prometheus.Collector = (*Exporter)(nil)

// Serve registers the exporter on a fresh registry and exposes
// /metrics on addr in a background goroutine. Best-effort: listen
// errors are discarded, matching the engine's stance that
// observability must never fail the host.
func Serve(addr string, stats *sample.Stats) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(stats))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
