package economy

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/random"
	"github.com/jensholdgaard/trinity/internal/state"
	"github.com/jensholdgaard/trinity/internal/telemetry"
)

// Manager runs economy operations against the shared state.
type Manager struct {
	state   *state.Store
	events  event.Store
	clock   clock.Clock
	rand    random.Source
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewManager returns a new economy Manager. metrics may be nil.
func NewManager(st *state.Store, events event.Store, clk clock.Clock, rnd random.Source, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		state:   st,
		events:  events,
		clock:   clk,
		rand:    rnd,
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/trinity/internal/economy"),
	}
}

// update runs fn as one state mutation and records the outcome.
func (m *Manager) update(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	err := m.state.Update(ctx, fn)
	m.finish(ctx, op, err)
	return err
}

// view runs fn with read access and records the outcome.
func (m *Manager) view(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	err := m.state.View(fn)
	m.finish(ctx, op, err)
	return err
}

func (m *Manager) finish(ctx context.Context, op string, err error) {
	m.metrics.Operation(ctx, "economy", op, err)
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	if game.KindOf(err) == game.KindInternal {
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "economy operation failed", slog.String("op", op), slog.Any("error", err))
		return
	}
	m.logger.DebugContext(ctx, "economy operation rejected", slog.String("op", op), slog.Any("error", err))
}

// record appends journal entries. Failures are logged only.
func (m *Manager) record(ctx context.Context, events ...event.Event) {
	if len(events) == 0 {
		return
	}
	if err := m.events.Append(ctx, events...); err != nil {
		m.logger.ErrorContext(ctx, "failed to append economy events",
			slog.String("type", string(events[0].Type)),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) newEvent(id game.ID, typ event.Type, data any) event.Event {
	return event.New(id.String(), typ, data, m.clock.Now())
}

func playerAttr(id game.ID) attribute.KeyValue {
	return attribute.Int64("player_id", int64(id))
}

// History returns the journal of a player, oldest first.
func (m *Manager) History(ctx context.Context, id game.ID) ([]event.Event, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.History", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	evts, err := m.events.Load(ctx, id.String())
	m.finish(ctx, "history", err)
	return evts, err
}
