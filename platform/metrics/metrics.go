// Package metrics exposes Prometheus instrumentation for the assignment pipeline.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple binaries never
// collide on the global default registerer.
type Collector struct {
	registry *prometheus.Registry

	contactsClassified *prometheus.CounterVec
	batchesFinalized   *prometheus.CounterVec
	dispatches         *prometheus.CounterVec
	leadLimitReached   prometheus.Counter
	chunkDuration      prometheus.Histogram
	chunksProcessed    prometheus.Counter
}

// NewCollector creates and registers all assignment metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		contactsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_contacts_total",
			Help: "Contacts processed by the assignment worker, by classification",
		}, []string{"classification"}),
		batchesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_batches_finalized_total",
			Help: "Assignment batches that reached a terminal status",
		}, []string{"status"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_platform_dispatches_total",
			Help: "Per-platform worker dispatches issued by the orchestrator, by outcome",
		}, []string{"outcome"}),
		leadLimitReached: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_lead_limit_reached_total",
			Help: "Times the campaign system reported its lead ceiling",
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assignment_chunk_duration_seconds",
			Help:    "Wall-clock duration of one worker chunk",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}),
		chunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_chunks_total",
			Help: "Worker chunks processed",
		}),
	}

	c.registry.MustRegister(
		c.contactsClassified,
		c.batchesFinalized,
		c.dispatches,
		c.leadLimitReached,
		c.chunkDuration,
		c.chunksProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RecordContact counts one classified contact.
func (c *Collector) RecordContact(classification string) {
	c.contactsClassified.WithLabelValues(classification).Inc()
}

// RecordBatchFinalized counts a batch reaching a terminal status.
func (c *Collector) RecordBatchFinalized(status string) {
	c.batchesFinalized.WithLabelValues(status).Inc()
}

// RecordDispatch counts one per-platform dispatch ("triggered" or "trigger_failed").
func (c *Collector) RecordDispatch(outcome string) {
	c.dispatches.WithLabelValues(outcome).Inc()
}

// RecordLeadLimitReached counts a lead-limit trip.
func (c *Collector) RecordLeadLimitReached() {
	c.leadLimitReached.Inc()
}

// RecordChunk observes the duration of one worker chunk.
func (c *Collector) RecordChunk(seconds float64) {
	c.chunksProcessed.Inc()
	c.chunkDuration.Observe(seconds)
}

// Registry exposes the underlying registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
