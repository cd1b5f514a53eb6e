// Package inventory implements equipment slots, the player-to-player market
// and weighted loot draws.
package inventory

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/state"
	"github.com/jensholdgaard/trinity/internal/telemetry"
)

// Manager runs inventory and market operations against the shared state.
type Manager struct {
	state   *state.Store
	events  event.Store
	clock   clock.Clock
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewManager returns a new inventory Manager. metrics may be nil.
func NewManager(st *state.Store, events event.Store, clk clock.Clock, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		state:   st,
		events:  events,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/trinity/internal/inventory"),
	}
}

func (m *Manager) update(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	err := m.state.Update(ctx, fn)
	m.finish(ctx, op, err)
	return err
}

func (m *Manager) view(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	err := m.state.View(fn)
	m.finish(ctx, op, err)
	return err
}

func (m *Manager) finish(ctx context.Context, op string, err error) {
	m.metrics.Operation(ctx, "inventory", op, err)
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	if game.KindOf(err) == game.KindInternal {
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "inventory operation failed", slog.String("op", op), slog.Any("error", err))
		return
	}
	m.logger.DebugContext(ctx, "inventory operation rejected", slog.String("op", op), slog.Any("error", err))
}

func (m *Manager) record(ctx context.Context, events ...event.Event) {
	if err := m.events.Append(ctx, events...); err != nil {
		m.logger.ErrorContext(ctx, "failed to append inventory events",
			slog.String("type", string(events[0].Type)),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) itemEvent(id game.ID, typ event.Type, data event.ItemData) event.Event {
	return event.New(id.String(), typ, data, m.clock.Now())
}

func itemAttrs(id game.ID, name string) trace.SpanStartEventOption {
	return trace.WithAttributes(
		attribute.Int64("player_id", int64(id)),
		attribute.String("item", name),
	)
}
