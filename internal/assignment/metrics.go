package assignment

import (
	"context"

	"outreach_backend/internal/events"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/metrics"
)

// MetricsRecorder turns assignment events into Prometheus samples.
type MetricsRecorder struct {
	collector *metrics.Collector
	log       *logger.Logger
}

// NewMetricsRecorder creates a recorder for the collector.
func NewMetricsRecorder(collector *metrics.Collector, log *logger.Logger) *MetricsRecorder {
	if log == nil {
		log = logger.Discard()
	}
	return &MetricsRecorder{collector: collector, log: log}
}

// RegisterHandlers subscribes the recorder to the assignment events.
func (r *MetricsRecorder) RegisterHandlers(bus events.Bus) {
	events.SubscribeAll(bus, r,
		events.AssignmentContactClassified{}.EventName(),
		events.AssignmentChunkProcessed{}.EventName(),
		events.AssignmentBatchFinalized{}.EventName(),
		events.AssignmentLeadLimitReached{}.EventName(),
		events.AssignmentPlatformDispatched{}.EventName(),
	)

	r.log.Info("assignment metrics registered event handlers")
}

// Handle records one event. Dry-run classifications are not counted.
func (r *MetricsRecorder) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AssignmentContactClassified:
		if !e.DryRun {
			r.collector.RecordContact(e.Classification)
		}
	case events.AssignmentChunkProcessed:
		r.collector.RecordChunk(e.DurationMs / 1000)
	case events.AssignmentBatchFinalized:
		r.collector.RecordBatchFinalized(e.Status)
	case events.AssignmentLeadLimitReached:
		r.collector.RecordLeadLimitReached()
	case events.AssignmentPlatformDispatched:
		r.collector.RecordDispatch(e.Status)
	}
	return nil
}
