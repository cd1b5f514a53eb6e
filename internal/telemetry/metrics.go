package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine instruments.
type Metrics struct {
	operations metric.Int64Counter
	pending    metric.Int64UpDownCounter
	backups    metric.Int64Counter
}

// NewMetrics creates the engine instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/jensholdgaard/trinity")

	ops, err := meter.Int64Counter("trinity.operations",
		metric.WithDescription("Engine operations by component, name and outcome."))
	if err != nil {
		return nil, fmt.Errorf("creating operations counter: %w", err)
	}
	pending, err := meter.Int64UpDownCounter("trinity.encounters.pending",
		metric.WithDescription("Encounters waiting for resolution."))
	if err != nil {
		return nil, fmt.Errorf("creating pending counter: %w", err)
	}
	backups, err := meter.Int64Counter("trinity.backups",
		metric.WithDescription("State backups written, by outcome."))
	if err != nil {
		return nil, fmt.Errorf("creating backups counter: %w", err)
	}
	return &Metrics{operations: ops, pending: pending, backups: backups}, nil
}

// Operation records one engine operation. A nil receiver records nothing.
func (m *Metrics) Operation(ctx context.Context, component, name string, err error) {
	if m == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", name),
		attribute.String("outcome", outcome(err)),
	))
}

// EncounterPending adjusts the pending encounter gauge by delta.
func (m *Metrics) EncounterPending(ctx context.Context, kind string, delta int64) {
	if m == nil {
		return
	}
	m.pending.Add(ctx, delta, metric.WithAttributes(attribute.String("kind", kind)))
}

// Backup records one backup attempt.
func (m *Metrics) Backup(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.backups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
