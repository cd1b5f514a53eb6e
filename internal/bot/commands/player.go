package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/game"
)

const leaderboardSize = 10

func (h *Handlers) playerCommands() []command {
	return []command{
		{def: slash("balance", "Show a balance", userOpt("player", "Player to inspect, yourself by default", false)), run: h.balance},
		{def: slash("profile", "Show a player's profile", userOpt("player", "Player to inspect, yourself by default", false)), run: h.profile},
		{def: slash("work", "Collect the income accrued since your last work"), run: h.work},
		{def: slash("income", "Preview your income without collecting it"), run: h.income},
		{def: slash("income-calc", "Estimate the income of a province",
			bounded(intOpt("population", "Province population", true), 0, maxAmount),
		), run: h.incomeCalc},
		{def: slash("pay", "Send money to another player",
			userOpt("player", "Recipient", true),
			intOpt("amount", "Amount to send", true),
		), run: h.pay},
		{def: slash("leaderboard", "Richest players"), run: h.leaderboard},
		{def: slash("income-leaderboard", "Roles with the largest income"), run: h.incomeLeaderboard},
		{def: slash("shop", "Show the upgrade catalog"), run: h.shop},
		{def: slash("buy", "Buy an upgrade",
			strOpt("upgrade", "Upgrade name", true),
			bounded(intOpt("quantity", "How many to buy (default 1)", false), 1, maxQuantity),
			roleOpt("role", "Role receiving the income when several qualify", false),
		), run: h.buy},
		{def: slash("level", "Show level progress", userOpt("player", "Player to inspect, yourself by default", false)), run: h.level},
		{def: slash("skill", "Spend skill points",
			choices(strOpt("skill", "Skill to raise", true), game.Stats),
			intOpt("points", "Points to spend", true),
		), run: h.skill},
		{def: slash("history", "Show your latest ledger entries"), run: h.history},
	}
}

// target returns the "player" option, or the invoking member when absent.
func (r Request) target() (game.ID, error) {
	if !r.has("player") {
		return r.User, nil
	}
	return r.id("player")
}

func (h *Handlers) balance(ctx context.Context, req Request) (string, error) {
	id, err := req.target()
	if err != nil {
		return "", err
	}
	bal, err := h.econ.Balance(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s has **%s**.", mention(id), money(h.symbol(ctx), bal)), nil
}

func (h *Handlers) profile(ctx context.Context, req Request) (string, error) {
	id, err := req.target()
	if err != nil {
		return "", err
	}
	p, err := h.econ.Profile(ctx, id)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	var b strings.Builder
	fmt.Fprintf(&b, "**Profile of** %s\n", mention(id))
	fmt.Fprintf(&b, "Balance: %s\nManpower: %s\n", money(sym, p.Balance), humanize.Comma(p.Manpower))
	fmt.Fprintf(&b, "Level %d (%s xp), %d skill points\n", p.Level, humanize.FtoaWithDigits(p.XP, 2), p.Skillpoints)
	for _, st := range game.Stats {
		if v := p.Stats[st]; v > 0 {
			fmt.Fprintf(&b, "%s: %d\n", st, v)
		}
	}
	for _, name := range game.SortedKeys(p.Upgrades) {
		if n := p.Upgrades[name]; n > 0 {
			fmt.Fprintf(&b, "%s x%d\n", name, n)
		}
	}
	if !p.LastWork.IsZero() {
		fmt.Fprintf(&b, "Last worked %s", h.relative(p.LastWork.Time()))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handlers) work(ctx context.Context, req Request) (string, error) {
	res, err := h.econ.Work(ctx, req.User, req.Roles)
	if errors.Is(err, game.ErrTooEarly) {
		return fmt.Sprintf("You can work again %s.", h.relative(res.Next)), nil
	}
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	return fmt.Sprintf("You earned **%s** (x%s). Balance: **%s**. Next work %s.",
		money(sym, res.Earned),
		humanize.FtoaWithDigits(res.Jitter, 2),
		money(sym, res.Balance),
		h.relative(res.Next),
	), nil
}

func (h *Handlers) income(ctx context.Context, req Request) (string, error) {
	in, err := h.econ.IncomePreview(ctx, req.User, req.Roles)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	return fmt.Sprintf("Base %s, items x%s and +%s, stewardship +%s%s.\nIncome per interval: **%s**",
		money(sym, in.Base),
		humanize.FtoaWithDigits(in.Multiplier, 2),
		money(sym, in.Boost),
		sym, humanize.FtoaWithDigits(in.Stewardship, 2),
		money(sym, int64(in.Total)),
	), nil
}

func (h *Handlers) incomeCalc(ctx context.Context, req Request) (string, error) {
	pop := req.integer("population", 0)
	if pop < 0 {
		return "", game.Validation(game.ErrInvalidAmount, "population must not be negative")
	}
	return fmt.Sprintf("A population of %s earns **%s**.",
		humanize.Comma(pop), money(h.symbol(ctx), economy.PopulationIncome(pop))), nil
}

func (h *Handlers) pay(ctx context.Context, req Request) (string, error) {
	to, err := req.id("player")
	if err != nil {
		return "", err
	}
	t, err := h.econ.Pay(ctx, req.User, to, req.integer("amount", 0))
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	return fmt.Sprintf("Sent **%s** to %s. Your balance: %s.", money(sym, t.Amount), mention(to), money(sym, t.FromBalance)), nil
}

func (h *Handlers) leaderboard(ctx context.Context, _ Request) (string, error) {
	st, err := h.econ.Leaderboard(ctx)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	var lines []string
	for i, s := range st {
		if i == leaderboardSize {
			break
		}
		lines = append(lines, fmt.Sprintf("%s. %s %s", humanize.Ordinal(i+1), mention(s.ID), money(sym, s.Balance)))
	}
	return list("Leaderboard", "Nobody has any money yet.", lines), nil
}

func (h *Handlers) incomeLeaderboard(ctx context.Context, _ Request) (string, error) {
	ri, err := h.econ.IncomeLeaderboard(ctx)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	var lines []string
	for i, r := range ri {
		if i == leaderboardSize {
			break
		}
		lines = append(lines, fmt.Sprintf("%s. %s %s", humanize.Ordinal(i+1), roleMention(r.RoleID), money(sym, r.Income)))
	}
	return list("Income leaderboard", "No role has an income yet.", lines), nil
}

func (h *Handlers) shop(ctx context.Context, req Request) (string, error) {
	offers, err := h.econ.Catalog(ctx, req.User)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	var lines []string
	for _, o := range offers {
		line := fmt.Sprintf("**%s** %s, +%s income, +%s manpower, owned %d",
			o.Name, money(sym, o.Upgrade.Cost), money(sym, o.Upgrade.Income), humanize.Comma(o.Upgrade.Manpower), o.Owned)
		if o.Cap != nil {
			line += fmt.Sprintf("/%d", *o.Cap)
		}
		if o.Upgrade.Require != "" {
			line += ", requires " + o.Upgrade.Require
		}
		lines = append(lines, line)
	}
	return list("Shop", "The shop is empty.", lines), nil
}

func (h *Handlers) buy(ctx context.Context, req Request) (string, error) {
	roles := req.Roles
	if req.has("role") {
		rid, err := req.id("role")
		if err != nil {
			return "", err
		}
		roles = nil
		for _, r := range req.Roles {
			if r.ID == rid {
				roles = append(roles, r)
			}
		}
	}
	res, err := h.econ.Buy(ctx, req.User, roles, req.str("upgrade"), int(req.integer("quantity", 1)))
	if errors.Is(err, game.ErrAmbiguousRole) {
		names := make([]string, 0, len(res.Candidates))
		for _, r := range res.Candidates {
			names = append(names, roleMention(r.ID))
		}
		return "Several of your roles can receive this income, pick one with the role option: " + strings.Join(names, ", "), nil
	}
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	msg := fmt.Sprintf("Bought %d x **%s** for %s", res.Quantity, res.Name, money(sym, res.Cost))
	if res.Discount > 0 {
		msg += fmt.Sprintf(" (%s off)", percent(res.Discount))
	}
	msg += fmt.Sprintf(". Balance: %s, manpower %s.", money(sym, res.Balance), humanize.Comma(res.Manpower))
	if res.Role.ID != 0 {
		msg += fmt.Sprintf(" %s now earns %s.", roleMention(res.Role.ID), money(sym, res.RoleIncome))
	}
	return msg, nil
}

func (h *Handlers) level(ctx context.Context, req Request) (string, error) {
	id, err := req.target()
	if err != nil {
		return "", err
	}
	v, err := h.econ.Level(ctx, id)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("%s is level **%d**: %s/%s xp (%d%%), %d skill points.",
		mention(id), v.Level,
		humanize.FtoaWithDigits(v.XP, 2), humanize.FtoaWithDigits(v.Threshold, 2),
		v.Progress, v.Skillpoints)
	if v.Gained > 0 {
		msg += fmt.Sprintf(" Gained %d level(s)!", v.Gained)
	}
	return msg, nil
}

func (h *Handlers) skill(ctx context.Context, req Request) (string, error) {
	stat := req.str("skill")
	total, err := h.econ.AllocateSkill(ctx, req.User, stat, int(req.integer("points", 0)))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your %s is now **%d**.", strings.ToLower(stat), total), nil
}

func (h *Handlers) history(ctx context.Context, req Request) (string, error) {
	evts, err := h.econ.History(ctx, req.User)
	if err != nil {
		return "", err
	}
	var lines []string
	for i := len(evts) - 1; i >= 0 && len(lines) < leaderboardSize; i-- {
		e := evts[i]
		lines = append(lines, fmt.Sprintf("`%s` %s", e.Type, humanize.RelTime(e.CreatedAt, h.clock.Now(), "ago", "from now")))
	}
	return list("History", "No history yet.", lines), nil
}
