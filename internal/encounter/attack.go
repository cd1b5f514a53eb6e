package encounter

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// AttackRequest declares an attack.
type AttackRequest struct {
	Forces
	// Hours is the delay before the battle is fought.
	Hours float64
	// SkipColonization waives the colonization price, which equals the
	// enemy manpower.
	SkipColonization bool
	// Income is credited to IncomeRole on victory. A zero IncomeRole names
	// no role.
	Income     int64
	IncomeRole game.ID
}

func (r AttackRequest) colonization() int64 {
	if r.SkipColonization {
		return 0
	}
	return r.EnemyManpower
}

// AttackResult is delivered once an attack resolves.
type AttackResult struct {
	Encounter Encounter
	Battle    BattleResult
	// Refund is the colonization price returned to the attacker.
	Refund int64
	// Returned is the surviving manpower given back to the attacker.
	Returned int64
	// IncomeCredited is the amount added to the income role on victory.
	IncomeCredited int64
	// Escalated reports a victory income at or above the cap that was left
	// for an admin to apply.
	Escalated bool
	Err       error
}

// Attack validates and reserves an attack, then schedules the battle. done is
// called with the result from the timer goroutine.
func (m *Manager) Attack(ctx context.Context, id game.ID, req AttackRequest, done func(AttackResult)) (Encounter, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Attack",
		trace.WithAttributes(
			attribute.Int64("player_id", int64(id)),
			attribute.Int64("manpower", req.Manpower),
			attribute.Int64("enemy_manpower", req.EnemyManpower),
			attribute.Float64("hours", req.Hours),
		),
	)
	defer span.End()

	var enc Encounter
	err := m.update(ctx, "start_attack", func(doc *game.Document) error {
		if err := m.checkOpen(doc); err != nil {
			return err
		}
		if req.Manpower < 0 || req.EnemyManpower < 0 || req.Support < 0 || req.EnemySupport < 0 || req.Income < 0 || req.Hours < 0 {
			return game.Validation(game.ErrInvalidAmount, "attack values must not be negative")
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if req.Hours > doc.MaximumAttackTime {
			return game.Validation(game.ErrAttackTooLong, "maximum is %gh", doc.MaximumAttackTime)
		}
		if req.IncomeRole != 0 {
			if _, ok := doc.Income[req.IncomeRole]; !ok {
				return game.NotFound(game.ErrRoleNotFound, "role %s", req.IncomeRole)
			}
		}
		cost := req.colonization()
		if p.Balance < cost {
			return game.Validation(game.ErrInsufficientFund, "colonization costs %d, balance %d", cost, p.Balance)
		}
		if p.Manpower < req.Manpower {
			return game.Validation(game.ErrManpower, "have %d, need %d", p.Manpower, req.Manpower)
		}

		p.Balance -= cost
		p.Manpower -= req.Manpower

		now := m.clock.Now()
		enc = Encounter{
			ID:        uuid.NewString(),
			Kind:      Attack,
			Player:    id,
			Manpower:  req.Manpower,
			Cost:      cost,
			Started:   now,
			ResolveAt: now.Add(time.Duration(req.Hours * float64(time.Hour))),
		}
		if req.IncomeRole != 0 {
			enc.Target = req.IncomeRole.String()
		}
		return nil
	})
	if err != nil {
		return Encounter{}, err
	}

	m.record(ctx, m.encounterEvent(enc, event.AttackStarted, "", 0, ""))
	m.logger.InfoContext(ctx, "attack started",
		slog.String("player_id", id.String()),
		slog.String("encounter_id", enc.ID),
		slog.Int64("manpower", req.Manpower),
		slog.Int64("enemy_manpower", req.EnemyManpower),
		slog.Time("resolve_at", enc.ResolveAt),
	)

	m.hold(ctx, enc, func(ctx context.Context) {
		res := m.resolveAttack(ctx, enc, req)
		if done != nil {
			done(res)
		}
	})
	return enc, nil
}

func (m *Manager) resolveAttack(ctx context.Context, enc Encounter, req AttackRequest) AttackResult {
	ctx, span := m.tracer.Start(ctx, "Manager.resolveAttack",
		trace.WithAttributes(attribute.String("encounter_id", enc.ID), attribute.Int64("player_id", int64(enc.Player))))
	defer span.End()

	res := AttackResult{Encounter: enc}
	err := m.update(ctx, "resolve_attack", func(doc *game.Document) error {
		p, err := doc.Player(enc.Player)
		if err != nil {
			return err
		}
		res.Battle = ResolveBattle(m.rand, req.Forces)

		if res.Battle.Outcome.Refunded() {
			res.Refund = enc.Cost
			p.Balance += res.Refund
		} else if doc.AllowAttackIncome && req.IncomeRole != 0 && req.Income > 0 {
			if req.Income >= doc.AttackIncomeCap {
				res.Escalated = true
			} else if _, ok := doc.Income[req.IncomeRole]; ok {
				doc.Income[req.IncomeRole] += req.Income
				res.IncomeCredited = req.Income
			}
		}

		res.Returned = res.Battle.Attacker
		p.Manpower += res.Returned
		return nil
	})
	if err != nil {
		res.Err = err
		m.release(ctx, enc, enc.Cost)
	}

	outcome := string(res.Battle.Outcome)
	if res.Err != nil {
		outcome = "error"
	}
	m.record(ctx, m.encounterEvent(enc, event.AttackResolved, outcome, 0, ""))
	attrs := []any{
		slog.String("player_id", enc.Player.String()),
		slog.String("encounter_id", enc.ID),
		slog.String("outcome", outcome),
		slog.Int64("attacker_left", res.Battle.Attacker),
		slog.Int64("defender_left", res.Battle.Defender),
	}
	if res.Escalated {
		m.logger.WarnContext(ctx, "attack income above cap needs an admin", append(attrs, slog.Int64("income", req.Income))...)
	} else {
		m.logger.InfoContext(ctx, "attack resolved", attrs...)
	}
	return res
}
