package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jensholdgaard/trinity/internal/game"
)

// money formats an amount with the configured currency symbol.
func money(sym string, v int64) string {
	if v < 0 {
		return "-" + sym + humanize.Comma(-v)
	}
	return sym + humanize.Comma(v)
}

func percent(f float64) string {
	return humanize.FtoaWithDigits(f*100, 2) + "%"
}

// symbol returns the currency symbol, or "$" when settings are unreadable.
func (h *Handlers) symbol(ctx context.Context) string {
	s, err := h.econ.Settings(ctx)
	if err != nil || s.CurrencySymbol == "" {
		return "$"
	}
	return s.CurrencySymbol
}

// relative describes t against the handler clock, e.g. "2 hours from now".
func (h *Handlers) relative(t time.Time) string {
	return humanize.RelTime(t, h.clock.Now(), "ago", "from now")
}

func itemLine(sym, name string, it game.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s %s)", name, it.Rarity, it.Type)
	if it.Income != 0 {
		fmt.Fprintf(&b, ", +%s income", money(sym, it.Income))
	}
	if it.IncomePercent != 0 {
		fmt.Fprintf(&b, ", x%s income", humanize.FtoaWithDigits(it.IncomePercent/100, 2))
	}
	if it.Discount != "" {
		fmt.Fprintf(&b, ", %s%% off %s", humanize.FtoaWithDigits(it.DiscountPercent, 2), it.Discount)
	}
	if it.Description != "" {
		fmt.Fprintf(&b, "\n> %s", it.Description)
	}
	return b.String()
}

// list renders lines under a title, or empty when there are none.
func list(title, empty string, lines []string) string {
	if len(lines) == 0 {
		return empty
	}
	return "**" + title + "**\n" + strings.Join(lines, "\n")
}
