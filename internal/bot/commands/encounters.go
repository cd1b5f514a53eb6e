package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jensholdgaard/trinity/internal/encounter"
	"github.com/jensholdgaard/trinity/internal/game"
)

func (h *Handlers) encounterCommands() []command {
	return []command{
		{def: slash("missions", "Show the available expeditions"), run: h.missions},
		{def: slash("expedition", "Send manpower on an expedition",
			strOpt("mission", "Expedition name", true),
		), run: h.expedition},
		{def: slash("attack", "Attack a province",
			intOpt("manpower", "Manpower to send", true),
			numOpt("hours", "Hours until the battle", true),
			intOpt("enemy-manpower", "Defending manpower, also the colonization price", false),
			intOpt("support", "Your support strength", false),
			intOpt("enemy-support", "Defending support strength", false),
			boolOpt("skip-colonization", "Do not pay the colonization price"),
			intOpt("income", "Income gained on victory", false),
			roleOpt("income-role", "Role receiving the income on victory", false),
		), run: h.attack},
		{def: slash("manpower", "Show your manpower", userOpt("player", "Player to inspect, yourself by default", false)), run: h.manpower},
		{def: slash("onhold", "Show encounters waiting to resolve"), run: h.onHold},
		{def: slash("recent", "Show recently resolved encounters",
			choices(strOpt("kind", "Encounter kind", true), []encounter.Kind{encounter.Expedition, encounter.Attack}),
		), run: h.recent},
	}
}

func (h *Handlers) missions(ctx context.Context, _ Request) (string, error) {
	ms, err := h.enc.Missions(ctx)
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	lines := make([]string, 0, len(ms))
	for _, m := range ms {
		line := fmt.Sprintf("**%s** level %d, %s, %s manpower, %gh, %d%% chance, %s xp",
			m.Name, m.Mission.Level, money(sym, m.Mission.Cost), humanize.Comma(m.Mission.Manpower),
			m.Mission.Hours, m.Mission.Chance, humanize.Comma(m.Mission.XP))
		if m.Mission.Description != "" {
			line += "\n> " + m.Mission.Description
		}
		lines = append(lines, line)
	}
	return list("Expeditions", "No expeditions are available.", lines), nil
}

func (h *Handlers) expedition(ctx context.Context, req Request) (string, error) {
	channel := req.ChannelID
	enc, err := h.enc.StartExpedition(ctx, req.User, req.str("mission"), func(res encounter.ExpeditionResult) {
		h.send(channel, expeditionText(res))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Expedition **%s** departed with %s manpower. It returns %s.",
		enc.Target, humanize.Comma(enc.Manpower), h.relative(enc.ResolveAt)), nil
}

func expeditionText(res encounter.ExpeditionResult) string {
	who, name := mention(res.Encounter.Player), res.Encounter.Target
	if res.Err != nil {
		return fmt.Sprintf("%s, expedition **%s** could not be resolved: %s. Your manpower was returned.", who, name, errorText(res.Err))
	}
	if !res.Success {
		return fmt.Sprintf("%s, expedition **%s** failed (rolled %d).", who, name, res.Roll)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, expedition **%s** succeeded (rolled %d): +%s xp", who, name, res.Roll, humanize.FtoaWithDigits(res.XP, 2))
	if res.Gained > 0 {
		fmt.Fprintf(&b, ", reached level %d", res.Level)
	}
	switch {
	case res.LootName != "":
		fmt.Fprintf(&b, ", found **%s** (%s)", res.LootName, res.Drop.Rarity)
	case res.InventoryFull:
		fmt.Fprintf(&b, ", found **%s** but your inventory is full", res.Drop.Name)
	}
	b.WriteString(".")
	return b.String()
}

func (h *Handlers) attack(ctx context.Context, req Request) (string, error) {
	ar := encounter.AttackRequest{
		Forces: encounter.Forces{
			Manpower:      req.integer("manpower", 0),
			EnemyManpower: req.integer("enemy-manpower", 0),
			Support:       req.integer("support", 0),
			EnemySupport:  req.integer("enemy-support", 0),
		},
		Hours:            req.number("hours", 0),
		SkipColonization: req.boolean("skip-colonization"),
		Income:           req.integer("income", 0),
	}
	if req.has("income-role") {
		rid, err := req.id("income-role")
		if err != nil {
			return "", err
		}
		ar.IncomeRole = rid
	}
	channel, sym := req.ChannelID, h.symbol(ctx)
	enc, err := h.enc.Attack(ctx, req.User, ar, func(res encounter.AttackResult) {
		h.send(channel, attackText(sym, ar.IncomeRole, res))
	})
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Attack launched with %s manpower. The battle is fought %s.",
		humanize.Comma(enc.Manpower), h.relative(enc.ResolveAt))
	if enc.Cost > 0 {
		msg += fmt.Sprintf(" Colonization price: %s.", money(sym, enc.Cost))
	}
	return msg, nil
}

func attackText(sym string, incomeRole game.ID, res encounter.AttackResult) string {
	who := mention(res.Encounter.Player)
	if res.Err != nil {
		return fmt.Sprintf("%s, your attack could not be resolved: %s. Manpower and costs were returned.", who, errorText(res.Err))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, battle after %d round(s): %s left on your side, %s on theirs. ",
		who, res.Battle.Rounds, humanize.Comma(res.Battle.Attacker), humanize.Comma(res.Battle.Defender))
	switch res.Battle.Outcome {
	case encounter.Won:
		b.WriteString("**Victory!**")
	case encounter.Lost:
		b.WriteString("**Defeat.**")
	case encounter.Tie:
		b.WriteString("**Both armies were destroyed.**")
	default:
		b.WriteString("**The battle was inconclusive.**")
	}
	if res.Refund > 0 {
		fmt.Fprintf(&b, " Refunded %s.", money(sym, res.Refund))
	}
	if res.IncomeCredited > 0 {
		fmt.Fprintf(&b, " %s gains %s income.", roleMention(incomeRole), money(sym, res.IncomeCredited))
	}
	if res.Escalated {
		b.WriteString(" The income exceeds the cap and was left for an admin to apply.")
	}
	return b.String()
}

func (h *Handlers) manpower(ctx context.Context, req Request) (string, error) {
	id, err := req.target()
	if err != nil {
		return "", err
	}
	s, err := h.enc.Manpower(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s has %s manpower (%s effective, +%s).",
		mention(id), humanize.Comma(s.Manpower), humanize.Comma(s.Effective), percent(s.Bonus)), nil
}

func (h *Handlers) onHold(_ context.Context, _ Request) (string, error) {
	pending := h.enc.OnHold()
	lines := make([]string, 0, len(pending))
	for _, e := range pending {
		line := fmt.Sprintf("%s by %s, %s manpower, resolves %s", e.Kind, mention(e.Player), humanize.Comma(e.Manpower), h.relative(e.ResolveAt))
		if e.Kind == encounter.Expedition {
			line = fmt.Sprintf("%s **%s**", line, e.Target)
		}
		lines = append(lines, line)
	}
	return list("On hold", "No encounters are pending.", lines), nil
}

func (h *Handlers) recent(ctx context.Context, req Request) (string, error) {
	evts, err := h.enc.Recent(ctx, encounter.Kind(req.str("kind")), leaderboardSize)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(evts))
	for _, e := range evts {
		lines = append(lines, fmt.Sprintf("<@%s> %s", e.AggregateID, humanize.RelTime(e.CreatedAt, h.clock.Now(), "ago", "from now")))
	}
	return list("Recent "+req.str("kind")+"s", "Nothing resolved yet.", lines), nil
}
