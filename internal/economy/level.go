package economy

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// LevelView describes a player's level progress.
type LevelView struct {
	Level       int
	XP          float64
	Threshold   float64
	Progress    int
	Skillpoints int
	// Gained is the number of levels granted by this call.
	Gained int
}

func levelView(p *game.Player, s game.Settings, gained int) LevelView {
	return LevelView{
		Level:       p.Level,
		XP:          p.XP,
		Threshold:   Threshold(p.Level, s.XPForLevel, s.LevelMultiplier),
		Progress:    Progress(p, s),
		Skillpoints: p.Skillpoints,
		Gained:      gained,
	}
}

// Level runs the level-up check and returns the player's progress.
func (m *Manager) Level(ctx context.Context, id game.ID) (LevelView, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Level", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	return m.changeXP(ctx, "level", id, func(p *game.Player) error { return nil })
}

// SetXP overwrites a player's xp and runs the level-up check.
func (m *Manager) SetXP(ctx context.Context, id game.ID, xp float64) (LevelView, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SetXP", trace.WithAttributes(playerAttr(id), attribute.Float64("xp", xp)))
	defer span.End()

	return m.changeXP(ctx, "set_xp", id, func(p *game.Player) error {
		if xp < 0 {
			return game.Validation(game.ErrInvalidAmount, "xp must not be negative")
		}
		p.XP = xp
		return nil
	})
}

// AddXP grants xp to a player and runs the level-up check.
func (m *Manager) AddXP(ctx context.Context, id game.ID, xp float64) (LevelView, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.AddXP", trace.WithAttributes(playerAttr(id), attribute.Float64("xp", xp)))
	defer span.End()

	return m.changeXP(ctx, "add_xp", id, func(p *game.Player) error {
		if xp <= 0 {
			return game.Validation(game.ErrInvalidAmount, "xp must be greater than 0")
		}
		p.XP += xp
		return nil
	})
}

func (m *Manager) changeXP(ctx context.Context, op string, id game.ID, apply func(p *game.Player) error) (LevelView, error) {
	var view LevelView
	changed := false
	err := m.update(ctx, op, func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		before := p.XP
		if err := apply(p); err != nil {
			return err
		}
		gained := LevelUp(p, doc.Settings)
		changed = gained > 0 || before != p.XP
		view = levelView(p, doc.Settings, gained)
		return nil
	})
	if err != nil {
		return view, err
	}
	if op != "level" && changed {
		m.record(ctx, m.newEvent(id, event.XPChanged, event.ChangeData{Key: "xp", Value: formatFloat(view.XP), By: op}))
	}
	if view.Gained > 0 {
		m.record(ctx, m.newEvent(id, event.LevelGained, event.ChangeData{Key: "level", Value: formatInt(int64(view.Level))}))
		m.logger.InfoContext(ctx, "player levelled up",
			slog.String("player_id", id.String()),
			slog.Int("level", view.Level),
			slog.Int("gained", view.Gained),
		)
	}
	return view, nil
}

// AllocateSkill spends value skill points on stat and returns its new total.
func (m *Manager) AllocateSkill(ctx context.Context, id game.ID, stat string, value int) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.AllocateSkill",
		trace.WithAttributes(playerAttr(id), attribute.String("stat", stat), attribute.Int("value", value)))
	defer span.End()

	var (
		total int
		st    game.Stat
	)
	err := m.update(ctx, "allocate_skill", func(doc *game.Document) error {
		var err error
		if st, err = game.ParseStat(stat); err != nil {
			return err
		}
		if value < 1 {
			return game.Validation(game.ErrInvalidAmount, "value must be at least 1")
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if p.Skillpoints < value {
			return game.Validation(game.ErrSkillpoints, "have %d, need %d", p.Skillpoints, value)
		}
		p.Skillpoints -= value
		p.Stats[st] += value
		total = p.Stats[st]
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.record(ctx, m.newEvent(id, event.SkillAssigned, event.ChangeData{Key: string(st), Value: formatInt(int64(total))}))
	return total, nil
}
