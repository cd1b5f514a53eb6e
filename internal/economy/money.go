package economy

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// WorkResult is the outcome of a work accrual.
type WorkResult struct {
	Earned  int64
	Balance int64
	Income  Income
	Jitter  float64
	// Next is the earliest time of the next accrual. It is also set when the
	// accrual was rejected as too early.
	Next time.Time
}

// Work credits the income accrued since the player's last work.
func (m *Manager) Work(ctx context.Context, id game.ID, roles []game.Role) (WorkResult, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Work", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var res WorkResult
	err := m.update(ctx, "work", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		interval := doc.WorkInterval()
		if !p.LastWork.IsZero() {
			if next := NextWork(p.LastWork, interval); now.Before(next) {
				res.Next = next
				return game.Validation(game.ErrTooEarly, "next work at %s", next.Format(time.DateTime))
			}
		}

		in := ComputeIncome(doc, p, roles)
		if in.Base <= 0 {
			return game.Validation(game.ErrNoIncomeSource, "ask an admin to set your income")
		}
		res.Income = in
		res.Jitter = 1
		if !p.LastWork.IsZero() {
			res.Jitter = Jitter(m.rand, doc.WorkRange)
		}
		res.Earned = Accrue(in.Total, p.LastWork, now, interval, res.Jitter)

		p.Balance += res.Earned
		p.LastWork = game.At(now)
		res.Balance = p.Balance
		res.Next = now.Add(interval)
		return nil
	})
	if err != nil {
		return res, err
	}

	m.record(ctx, m.newEvent(id, event.MoneyEarned, event.MoneyData{Amount: res.Earned, BalanceAfter: res.Balance, Reason: "work"}))
	m.logger.InfoContext(ctx, "player worked",
		slog.String("player_id", id.String()),
		slog.Int64("earned", res.Earned),
		slog.Float64("jitter", res.Jitter),
	)
	return res, nil
}

// IncomePreview returns the player's income per interval without accruing.
func (m *Manager) IncomePreview(ctx context.Context, id game.ID, roles []game.Role) (Income, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.IncomePreview", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var in Income
	err := m.view(ctx, "income_preview", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		in = ComputeIncome(doc, p, roles)
		return nil
	})
	return in, err
}

// Transfer is the outcome of a payment.
type Transfer struct {
	Amount      int64
	FromBalance int64
	ToBalance   int64
}

// Pay moves amount from one player to another.
func (m *Manager) Pay(ctx context.Context, from, to game.ID, amount int64) (Transfer, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Pay",
		trace.WithAttributes(
			playerAttr(from),
			attribute.Int64("to_player_id", int64(to)),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	var res Transfer
	err := m.update(ctx, "pay", func(doc *game.Document) error {
		if amount < 1 {
			return game.Validation(game.ErrInvalidAmount, "amount must be at least 1")
		}
		src, err := doc.Player(from)
		if err != nil {
			return err
		}
		dst, err := doc.Player(to)
		if err != nil {
			return err
		}
		if src.Balance < amount {
			return game.Validation(game.ErrInsufficientFund, "balance %d, need %d", src.Balance, amount)
		}
		src.Balance -= amount
		dst.Balance += amount
		res = Transfer{Amount: amount, FromBalance: src.Balance, ToBalance: dst.Balance}
		return nil
	})
	if err != nil {
		return res, err
	}

	m.record(ctx,
		m.newEvent(from, event.MoneyTransferred, event.MoneyData{Amount: -amount, BalanceAfter: res.FromBalance, Counterparty: to.String()}),
		m.newEvent(to, event.MoneyTransferred, event.MoneyData{Amount: amount, BalanceAfter: res.ToBalance, Counterparty: from.String()}),
	)
	m.logger.InfoContext(ctx, "payment made",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int64("amount", amount),
	)
	return res, nil
}

// AddMoney credits |amount| to a player and returns the new balance.
func (m *Manager) AddMoney(ctx context.Context, id game.ID, amount int64) (int64, error) {
	return m.adjust(ctx, "Manager.AddMoney", "add_money", id, abs(amount), "admin add")
}

// RemoveMoney debits |amount| from a player. The balance may go negative.
func (m *Manager) RemoveMoney(ctx context.Context, id game.ID, amount int64) (int64, error) {
	return m.adjust(ctx, "Manager.RemoveMoney", "remove_money", id, -abs(amount), "admin remove")
}

// ResetMoney sets a player's balance to zero.
func (m *Manager) ResetMoney(ctx context.Context, id game.ID) error {
	ctx, span := m.tracer.Start(ctx, "Manager.ResetMoney", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var before int64
	err := m.update(ctx, "reset_money", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		before = p.Balance
		p.Balance = 0
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.newEvent(id, event.MoneyAdjusted, event.MoneyData{Amount: -before, Reason: "admin reset"}))
	m.logger.InfoContext(ctx, "balance reset", slog.String("player_id", id.String()))
	return nil
}

func (m *Manager) adjust(ctx context.Context, spanName, op string, id game.ID, delta int64, reason string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, spanName, trace.WithAttributes(playerAttr(id), attribute.Int64("amount", delta)))
	defer span.End()

	var balance int64
	err := m.update(ctx, op, func(doc *game.Document) error {
		if delta == math.MinInt64 {
			return game.Validation(game.ErrInvalidAmount, "amount out of range")
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		b, ok := Add(p.Balance, delta)
		if !ok {
			return game.Validation(game.ErrInvalidAmount, "balance would overflow")
		}
		p.Balance = b
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.record(ctx, m.newEvent(id, event.MoneyAdjusted, event.MoneyData{Amount: delta, BalanceAfter: balance, Reason: reason}))
	m.logger.InfoContext(ctx, "balance adjusted",
		slog.String("player_id", id.String()),
		slog.Int64("delta", delta),
	)
	return balance, nil
}

// AddMoneyAll credits amount to every player and returns how many were paid.
func (m *Manager) AddMoneyAll(ctx context.Context, amount int64) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.AddMoneyAll", trace.WithAttributes(attribute.Int64("amount", amount)))
	defer span.End()

	var evts []event.Event
	err := m.update(ctx, "add_money_all", func(doc *game.Document) error {
		for _, p := range doc.Players {
			if _, ok := Add(p.Balance, amount); !ok {
				return game.Validation(game.ErrInvalidAmount, "balance would overflow")
			}
		}
		for id, p := range doc.Players {
			p.Balance += amount
			evts = append(evts, m.newEvent(id, event.MoneyAdjusted, event.MoneyData{Amount: amount, BalanceAfter: p.Balance, Reason: "admin add everyone"}))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.record(ctx, evts...)
	m.logger.InfoContext(ctx, "money added to everyone", slog.Int64("amount", amount), slog.Int("players", len(evts)))
	return len(evts), nil
}

// AddIncome raises a role's income bucket by value (> 0).
func (m *Manager) AddIncome(ctx context.Context, roleID game.ID, value int64) (int64, error) {
	return m.changeIncome(ctx, "Manager.AddIncome", "add_income", roleID, value, 1)
}

// RemoveIncome lowers a role's income bucket by value (> 0).
func (m *Manager) RemoveIncome(ctx context.Context, roleID game.ID, value int64) (int64, error) {
	return m.changeIncome(ctx, "Manager.RemoveIncome", "remove_income", roleID, value, -1)
}

func (m *Manager) changeIncome(ctx context.Context, spanName, op string, roleID game.ID, value, sign int64) (int64, error) {
	ctx, span := m.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.Int64("role_id", int64(roleID)), attribute.Int64("value", value)))
	defer span.End()

	delta := sign * value
	var total int64
	err := m.update(ctx, op, func(doc *game.Document) error {
		if value <= 0 {
			return game.Validation(game.ErrInvalidAmount, "value must be greater than 0")
		}
		if _, ok := doc.Income[roleID]; !ok {
			return game.NotFound(game.ErrRoleNotFound, "role %s", roleID)
		}
		doc.Income[roleID] += delta
		total = doc.Income[roleID]
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.record(ctx, m.newEvent(roleID, event.IncomeChanged, event.ChangeData{Key: roleID.String(), Value: formatInt(total)}))
	m.logger.InfoContext(ctx, "income changed",
		slog.String("role_id", roleID.String()),
		slog.Int64("delta", delta),
		slog.Int64("income", total),
	)
	return total, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
