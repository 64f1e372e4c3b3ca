package render

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/framecast/bridge/internal/render"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics holds the pipeline's OTel instruments. The global meter returns
// no-ops when OTel is not configured.
type metrics struct {
	ticks           metric.Int64Counter
	skippedTicks    metric.Int64Counter
	markersEmitted  metric.Int64Counter
	publishFailures metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error

	out.ticks, err = m.Int64Counter(
		"render.ticks",
		metric.WithDescription("Total render ticks completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.skippedTicks, err = m.Int64Counter(
		"render.ticks.skipped",
		metric.WithDescription("Render ticks skipped because the store was unavailable"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped ticks counter: %w", err)
	}

	out.markersEmitted, err = m.Int64Counter(
		"render.markers.emitted",
		metric.WithDescription("Markers synthesized across all ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markers counter: %w", err)
	}

	out.publishFailures, err = m.Int64Counter(
		"render.publish.failures",
		metric.WithDescription("Publish failures per stream"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating publish failures counter: %w", err)
	}

	return out, nil
}
