package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// setter parses value and applies it to s.
type setter func(s *game.Settings, value string) error

// settable lists every game setting that may be changed at runtime.
var settable = map[string]setter{
	"prefix": func(s *game.Settings, v string) error {
		if v == "" {
			return errEmpty
		}
		s.Prefix = v
		return nil
	},
	"currency_symbol": func(s *game.Settings, v string) error { s.CurrencySymbol = v; return nil },
	"join_dm":         func(s *game.Settings, v string) error { s.JoinDM = v; return nil },
	"default_role":    func(s *game.Settings, v string) error { s.DefaultRole = v; return nil },
	"disabled_roles": func(s *game.Settings, v string) error {
		var roles []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		s.DisabledRoles = roles
		return nil
	},
	"deltatime":         intSetter(func(s *game.Settings) *int64 { return &s.DeltaTime }, 1),
	"backup_time":       intSetter(func(s *game.Settings) *int64 { return &s.BackupTime }, 1),
	"default_balance":   intSetter(func(s *game.Settings) *int64 { return &s.DefaultBalance }, minInt),
	"attack_income_cap": intSetter(func(s *game.Settings) *int64 { return &s.AttackIncomeCap }, 1),
	"backups": func(s *game.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errPositive
		}
		s.Backups = n
		return nil
	},
	"max_player_items": func(s *game.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errNonNegative
		}
		s.MaxPlayerItems = n
		return nil
	},
	"work_range":          floatSetter(func(s *game.Settings) *float64 { return &s.WorkRange }, 0, 1),
	"level_multiplier":    floatSetter(func(s *game.Settings) *float64 { return &s.LevelMultiplier }, 1, 100),
	"xp_for_level":        floatSetter(func(s *game.Settings) *float64 { return &s.XPForLevel }, 1, 1e12),
	"maximum_attack_time": floatSetter(func(s *game.Settings) *float64 { return &s.MaximumAttackTime }, 0, 1e6),
	"diplomacy_rate":      floatSetter(func(s *game.Settings) *float64 { return &s.DiplomacyRate }, 0, 1),
	"warlord_rate":        floatSetter(func(s *game.Settings) *float64 { return &s.WarlordRate }, 0, 1),
	"intrique_rate":       floatSetter(func(s *game.Settings) *float64 { return &s.IntriqueRate }, 0, 1),
	"stewardship_rate":    floatSetter(func(s *game.Settings) *float64 { return &s.StewardshipRate }, 0, 1),
	"trading_rate":        floatSetter(func(s *game.Settings) *float64 { return &s.TradingRate }, 0, 1),
	"bartering_rate":      floatSetter(func(s *game.Settings) *float64 { return &s.BarteringRate }, 0, 1),
	"learning_rate":       floatSetter(func(s *game.Settings) *float64 { return &s.LearningRate }, 0, 10),
	"allow_attack_income": boolSetter(func(s *game.Settings) *bool { return &s.AllowAttackIncome }),
	"block_asyncs":        boolSetter(func(s *game.Settings) *bool { return &s.BlockAsyncs }),
}

const minInt = -1 << 62

var (
	errEmpty       = errors.New("must not be empty")
	errPositive    = errors.New("must be a positive integer")
	errNonNegative = errors.New("must be a non-negative integer")
)

func intSetter(field func(*game.Settings) *int64, lo int64) setter {
	return func(s *game.Settings, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		if n < lo {
			return fmt.Errorf("must be at least %d", lo)
		}
		*field(s) = n
		return nil
	}
}

func floatSetter(field func(*game.Settings) *float64, lo, hi float64) setter {
	return func(s *game.Settings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("not a number: %w", err)
		}
		if f < lo || f > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		*field(s) = f
		return nil
	}
}

func boolSetter(field func(*game.Settings) *bool) setter {
	return func(s *game.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %w", err)
		}
		*field(s) = b
		return nil
	}
}

// SettingNames returns the names accepted by SetSetting.
func SettingNames() []string {
	names := make([]string, 0, len(settable))
	for k := range settable {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Settings returns a copy of the game settings.
func (m *Manager) Settings(ctx context.Context) (game.Settings, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Settings")
	defer span.End()

	var s game.Settings
	err := m.view(ctx, "settings", func(doc *game.Document) error {
		s = doc.Settings
		s.DisabledRoles = append([]string(nil), doc.DisabledRoles...)
		return nil
	})
	return s, err
}

// SetSetting changes one named setting. by identifies the admin.
func (m *Manager) SetSetting(ctx context.Context, by game.ID, key, value string) (game.Settings, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SetSetting",
		trace.WithAttributes(playerAttr(by), attribute.String("key", key)))
	defer span.End()

	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	var out game.Settings
	err := m.update(ctx, "set_setting", func(doc *game.Document) error {
		set, ok := settable[key]
		if !ok {
			return game.Validation(game.ErrUnknownSetting, "%q is not one of %s", key, strings.Join(SettingNames(), ", "))
		}
		next := doc.Settings
		if err := set(&next, value); err != nil {
			return game.Validation(game.ErrInvalidSetting, "%s: %v", key, err)
		}
		doc.Settings = next
		out = next
		return nil
	})
	if err != nil {
		return out, err
	}
	m.record(ctx, event.New("settings", event.SettingChanged, event.ChangeData{Key: key, Value: value, By: by.String()}, m.clock.Now()))
	m.logger.InfoContext(ctx, "setting changed",
		slog.String("key", key),
		slog.String("value", value),
		slog.String("by", by.String()),
	)
	return out, nil
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
