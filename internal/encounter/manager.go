// Package encounter runs expeditions and attacks: timed, resource-reserving
// stochastic operations resolved on a timer.
package encounter

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

// Manager validates, reserves and resolves encounters.
type Manager struct {
	state   *state.Store
	events  event.Store
	clock   clock.Clock
	rand    random.Source
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	onHold  *registry
}

// NewManager returns a new encounter Manager. metrics may be nil.
func NewManager(st *state.Store, events event.Store, clk clock.Clock, rnd random.Source, metrics *telemetry.Metrics, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		state:   st,
		events:  events,
		clock:   clk,
		rand:    rnd,
		metrics: metrics,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/trinity/internal/encounter"),
		onHold:  newRegistry(),
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
	m.metrics.Operation(ctx, "encounter", op, err)
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	if game.KindOf(err) == game.KindInternal {
		span.SetStatus(codes.Error, err.Error())
		m.logger.ErrorContext(ctx, "encounter operation failed", slog.String("op", op), slog.Any("error", err))
		return
	}
	m.logger.DebugContext(ctx, "encounter operation rejected", slog.String("op", op), slog.Any("error", err))
}

func (m *Manager) record(ctx context.Context, events ...event.Event) {
	if err := m.events.Append(ctx, events...); err != nil {
		m.logger.ErrorContext(ctx, "failed to append encounter events",
			slog.String("type", string(events[0].Type)),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) encounterEvent(e Encounter, typ event.Type, outcome string, xp float64, loot string) event.Event {
	return event.New(e.Player.String(), typ, event.EncounterData{
		EncounterID: e.ID,
		Kind:        string(e.Kind),
		Target:      e.Target,
		Outcome:     outcome,
		ResolveAt:   e.ResolveAt,
		XP:          xp,
		Loot:        loot,
	}, m.clock.Now())
}

// hold registers e as pending and schedules resolve at e.ResolveAt. The
// resolution runs detached from the caller's cancellation.
func (m *Manager) hold(ctx context.Context, e Encounter, resolve func(ctx context.Context)) {
	m.onHold.add(e)
	m.metrics.EncounterPending(ctx, string(e.Kind), 1)

	bg := context.WithoutCancel(ctx)
	m.clock.AfterFunc(e.ResolveAt.Sub(e.Started), func() {
		defer func() {
			m.onHold.remove(e.ID)
			m.metrics.EncounterPending(bg, string(e.Kind), -1)
		}()
		resolve(bg)
	})
}

// OnHold returns the pending encounters ordered by resolution time.
func (m *Manager) OnHold() []Encounter {
	return m.onHold.list()
}

// Subscribe registers fn to be called whenever an encounter enters or leaves
// the on-hold list. The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(Change)) func() {
	return m.onHold.subscribe(fn)
}

// Strength is a player's manpower with the warlord bonus applied.
type Strength struct {
	Manpower  int64
	Effective int64
	Bonus     float64
}

// Manpower returns the player's manpower and its warlord-boosted value. The
// boosted value is informational; encounters reserve raw manpower.
func (m *Manager) Manpower(ctx context.Context, id game.ID) (Strength, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Manpower", trace.WithAttributes(attribute.Int64("player_id", int64(id))))
	defer span.End()

	var s Strength
	err := m.view(ctx, "manpower", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		s.Manpower = p.Manpower
		s.Bonus = float64(p.Stat(game.Warlord)) * doc.WarlordRate
		s.Effective = int64(float64(p.Manpower) + float64(p.Manpower)*s.Bonus)
		return nil
	})
	return s, err
}

// Recent returns up to limit of the latest resolutions of kind, newest first.
func (m *Manager) Recent(ctx context.Context, kind Kind, limit int) ([]event.Event, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Recent", trace.WithAttributes(attribute.String("kind", string(kind))))
	defer span.End()

	typ := event.ExpeditionResolved
	if kind == Attack {
		typ = event.AttackResolved
	}
	evts, err := m.events.LoadByType(ctx, typ)
	m.finish(ctx, "recent", err)
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, min(limit, len(evts)))
	for i := len(evts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, evts[i])
	}
	return out, nil
}

func (m *Manager) checkOpen(doc *game.Document) error {
	if doc.BlockAsyncs {
		return game.Validation(game.ErrEncountersHeld, "new encounters are blocked by an admin")
	}
	return nil
}
