package relay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/manamana32321/tshock-discord-relay/relay"

// Delivery results recorded on relay.deliveries.
const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultDropped   = "dropped"
	resultSkipped   = "skipped"
)

type metrics struct {
	events     metric.Int64Counter
	deliveries metric.Int64Counter
	duration   metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	events, err := meter.Int64Counter("relay.events",
		metric.WithDescription("Game events received from the host"))
	if err != nil {
		return nil, err
	}
	deliveries, err := meter.Int64Counter("relay.deliveries",
		metric.WithDescription("Outbound notification attempts by result"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("relay.delivery.duration",
		metric.WithDescription("Time spent waiting for a delivery"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &metrics{events: events, deliveries: deliveries, duration: duration}, nil
}

func (m *metrics) event(ctx context.Context, eventType string) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (m *metrics) delivery(ctx context.Context, eventType, result string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("result", result),
	)
	m.deliveries.Add(ctx, 1, attrs)
	if result == resultDelivered || result == resultFailed {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
