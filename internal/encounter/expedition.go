package encounter

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/inventory"
)

// ExpeditionResult is delivered once an expedition resolves.
type ExpeditionResult struct {
	Encounter Encounter
	Success   bool
	// Roll is the success draw in [0,100).
	Roll   int
	XP     float64
	Level  int
	Gained int
	// Drop is the loot draw; LootName is the name it was stored under.
	Drop     inventory.Drop
	LootName string
	// InventoryFull reports a drop withheld because of the item cap.
	InventoryFull bool
	// Err is set when the resolution failed; the manpower was still released.
	Err error
}

// StartExpedition validates and reserves an expedition, then schedules its
// resolution. done is called with the result from the timer goroutine.
func (m *Manager) StartExpedition(ctx context.Context, id game.ID, name string, done func(ExpeditionResult)) (Encounter, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.StartExpedition",
		trace.WithAttributes(attribute.Int64("player_id", int64(id)), attribute.String("mission", name)))
	defer span.End()

	var (
		enc Encounter
		ms  game.Mission
	)
	err := m.update(ctx, "start_expedition", func(doc *game.Document) error {
		if err := m.checkOpen(doc); err != nil {
			return err
		}
		var ok bool
		if ms, ok = doc.Missions[name]; !ok {
			return game.NotFound(game.ErrMissionNotFound, "%q", name)
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if p.Level < ms.Level {
			return game.Validation(game.ErrLevelTooLow, "level %d, need %d", p.Level, ms.Level)
		}
		if p.Balance < ms.Cost {
			return game.Validation(game.ErrInsufficientFund, "cost %d, balance %d", ms.Cost, p.Balance)
		}
		if p.Manpower < ms.Manpower {
			return game.Validation(game.ErrManpower, "have %d, need %d", p.Manpower, ms.Manpower)
		}

		p.Balance -= ms.Cost
		p.Manpower -= ms.Manpower

		now := m.clock.Now()
		enc = Encounter{
			ID:        uuid.NewString(),
			Kind:      Expedition,
			Player:    id,
			Target:    name,
			Manpower:  ms.Manpower,
			Cost:      ms.Cost,
			Started:   now,
			ResolveAt: now.Add(ms.Duration()),
		}
		return nil
	})
	if err != nil {
		return Encounter{}, err
	}

	m.record(ctx, m.encounterEvent(enc, event.ExpeditionStarted, "", 0, ""))
	m.logger.InfoContext(ctx, "expedition started",
		slog.String("player_id", id.String()),
		slog.String("mission", name),
		slog.String("encounter_id", enc.ID),
		slog.Time("resolve_at", enc.ResolveAt),
	)

	m.hold(ctx, enc, func(ctx context.Context) {
		res := m.resolveExpedition(ctx, enc, ms)
		if done != nil {
			done(res)
		}
	})
	return enc, nil
}

func (m *Manager) resolveExpedition(ctx context.Context, enc Encounter, ms game.Mission) ExpeditionResult {
	ctx, span := m.tracer.Start(ctx, "Manager.resolveExpedition",
		trace.WithAttributes(attribute.String("encounter_id", enc.ID), attribute.Int64("player_id", int64(enc.Player))))
	defer span.End()

	res := ExpeditionResult{Encounter: enc}
	err := m.update(ctx, "resolve_expedition", func(doc *game.Document) error {
		p, err := doc.Player(enc.Player)
		if err != nil {
			return err
		}
		res.Roll = m.rand.IntN(100)
		res.Success = res.Roll < ms.Chance
		if res.Success {
			res.XP = float64(ms.XP) + float64(ms.XP)*economy.Bonus(p.Stat(game.Learning), doc.LearningRate)
			p.XP += res.XP
			res.Gained = economy.LevelUp(p, doc.Settings)

			res.Drop = inventory.Draw(m.rand, ms.LootTable, doc.LootTable)
			if res.Drop.Found() {
				var ok bool
				res.LootName, ok = inventory.Grant(p, res.Drop.Name, res.Drop.Item, doc.MaxPlayerItems)
				res.InventoryFull = !ok
			}
		}
		res.Level = p.Level
		p.Manpower += enc.Manpower
		return nil
	})
	if err != nil {
		res.Err = err
		m.release(ctx, enc, 0)
	}

	outcome := "failed"
	if res.Success {
		outcome = "succeeded"
	}
	if res.Err != nil {
		outcome = "error"
	}
	m.record(ctx, m.encounterEvent(enc, event.ExpeditionResolved, outcome, res.XP, res.LootName))
	m.logger.InfoContext(ctx, "expedition resolved",
		slog.String("player_id", enc.Player.String()),
		slog.String("encounter_id", enc.ID),
		slog.String("outcome", outcome),
		slog.Float64("xp", res.XP),
		slog.String("loot", res.LootName),
	)
	return res
}

// release returns reserved manpower and refund after a failed resolution.
func (m *Manager) release(ctx context.Context, enc Encounter, refund int64) {
	err := m.state.Update(ctx, func(doc *game.Document) error {
		p, err := doc.Player(enc.Player)
		if err != nil {
			return err
		}
		p.Manpower += enc.Manpower
		p.Balance += refund
		return nil
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to release encounter reservation",
			slog.String("encounter_id", enc.ID),
			slog.String("player_id", enc.Player.String()),
			slog.Any("error", err),
		)
	}
}
