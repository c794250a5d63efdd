package assignment

import (
	"context"
	"testing"

	"outreach_backend/internal/events"
	"outreach_backend/platform/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorderSkipsDryRunClassifications(t *testing.T) {
	collector := metrics.NewCollector()
	bus := events.NewInMemoryBus(nil)
	NewMetricsRecorder(collector, nil).RegisterHandlers(bus)

	ctx := context.Background()
	bus.Publish(ctx, events.AssignmentContactClassified{BaseEvent: events.NewBaseEvent(), Classification: "added"})
	bus.Publish(ctx, events.AssignmentContactClassified{BaseEvent: events.NewBaseEvent(), Classification: "added", DryRun: true})
	bus.Publish(ctx, events.AssignmentBatchFinalized{BaseEvent: events.NewBaseEvent(), Status: "completed"})
	bus.Publish(ctx, events.AssignmentPlatformDispatched{BaseEvent: events.NewBaseEvent(), Status: "trigger_failed"})
	bus.Wait()

	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if m.GetCounter() != nil {
				values[family.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["assignment_contacts_total"])
	assert.Equal(t, 1.0, values["assignment_batches_finalized_total"])
	assert.Equal(t, 1.0, values["assignment_platform_dispatches_total"])
	assert.Equal(t, 0.0, values["assignment_lead_limit_reached_total"])
}
