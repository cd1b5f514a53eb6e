package economy

import (
	"context"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// Profile is a read-only copy of a player record.
type Profile struct {
	ID          game.ID
	Balance     int64
	Manpower    int64
	XP          float64
	Level       int
	Skillpoints int
	Stats       map[game.Stat]int
	Upgrades    map[string]int
	UpgradeCaps map[string]*int
	LastWork    game.UnixTime
}

func profileOf(id game.ID, p *game.Player) Profile {
	pr := Profile{
		ID:          id,
		Balance:     p.Balance,
		Manpower:    p.Manpower,
		XP:          p.XP,
		Level:       p.Level,
		Skillpoints: p.Skillpoints,
		LastWork:    p.LastWork,
		Stats:       make(map[game.Stat]int, len(p.Stats)),
		Upgrades:    make(map[string]int, len(p.Upgrades)),
		UpgradeCaps: make(map[string]*int, len(p.UpgradeCaps)),
	}
	for k, v := range p.Stats {
		pr.Stats[k] = v
	}
	for k, v := range p.Upgrades {
		pr.Upgrades[k] = v
	}
	for k, v := range p.UpgradeCaps {
		if v != nil {
			pr.UpgradeCaps[k] = game.Cap(*v)
		} else {
			pr.UpgradeCaps[k] = nil
		}
	}
	return pr
}

// EnsurePlayer creates the record of a member seen for the first time and
// back-fills missing fields otherwise. It reports whether a record was created.
func (m *Manager) EnsurePlayer(ctx context.Context, id game.ID) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.EnsurePlayer", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var created bool
	err := m.update(ctx, "ensure_player", func(doc *game.Document) error {
		_, created = doc.EnsurePlayer(id)
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		m.record(ctx, m.newEvent(id, event.PlayerJoined, nil))
		m.logger.InfoContext(ctx, "player created", slog.String("player_id", id.String()))
	}
	return created, nil
}

// SyncMembers ensures a record exists for every member id. It returns the
// number of records created.
func (m *Manager) SyncMembers(ctx context.Context, ids []game.ID) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SyncMembers", trace.WithAttributes(attribute.Int("members", len(ids))))
	defer span.End()

	var created []game.ID
	err := m.update(ctx, "sync_members", func(doc *game.Document) error {
		for _, id := range ids {
			if _, ok := doc.EnsurePlayer(id); ok {
				created = append(created, id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	evts := make([]event.Event, 0, len(created))
	for _, id := range created {
		evts = append(evts, m.newEvent(id, event.PlayerJoined, nil))
	}
	m.record(ctx, evts...)
	if len(created) > 0 {
		m.logger.InfoContext(ctx, "members synced", slog.Int("created", len(created)))
	}
	return len(created), nil
}

// RemovePlayer deletes a player record.
func (m *Manager) RemovePlayer(ctx context.Context, id game.ID) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemovePlayer", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	err := m.update(ctx, "remove_player", func(doc *game.Document) error {
		if _, err := doc.Player(id); err != nil {
			return err
		}
		delete(doc.Players, id)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.newEvent(id, event.PlayerRemoved, nil))
	m.logger.InfoContext(ctx, "player removed", slog.String("player_id", id.String()))
	return nil
}

// Profile returns a copy of the player record.
func (m *Manager) Profile(ctx context.Context, id game.ID) (Profile, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Profile", trace.WithAttributes(playerAttr(id)))
	defer span.End()

	var pr Profile
	err := m.view(ctx, "profile", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		pr = profileOf(id, p)
		return nil
	})
	return pr, err
}

// Balance returns the player's balance.
func (m *Manager) Balance(ctx context.Context, id game.ID) (int64, error) {
	pr, err := m.Profile(ctx, id)
	return pr.Balance, err
}

// AddRole creates an empty income bucket for a new role. Existing buckets
// are left untouched.
func (m *Manager) AddRole(ctx context.Context, roleID game.ID) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AddRole", trace.WithAttributes(attribute.Int64("role_id", int64(roleID))))
	defer span.End()

	return m.update(ctx, "add_role", func(doc *game.Document) error {
		if _, ok := doc.Income[roleID]; !ok {
			doc.Income[roleID] = 0
		}
		return nil
	})
}

// RemoveRole drops the income bucket of a deleted role.
func (m *Manager) RemoveRole(ctx context.Context, roleID game.ID) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveRole", trace.WithAttributes(attribute.Int64("role_id", int64(roleID))))
	defer span.End()

	err := m.update(ctx, "remove_role", func(doc *game.Document) error {
		if _, ok := doc.Income[roleID]; !ok {
			return game.NotFound(game.ErrRoleNotFound, "role %s", roleID)
		}
		delete(doc.Income, roleID)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.newEvent(roleID, event.IncomeChanged, event.ChangeData{Key: roleID.String(), Value: "removed"}))
	return nil
}

// SyncRoles makes the income table match the platform's current roles:
// missing buckets are created and buckets of vanished roles are dropped.
func (m *Manager) SyncRoles(ctx context.Context, roleIDs []game.ID) (added, removed int, err error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SyncRoles", trace.WithAttributes(attribute.Int("roles", len(roleIDs))))
	defer span.End()

	err = m.update(ctx, "sync_roles", func(doc *game.Document) error {
		present := make(map[game.ID]bool, len(roleIDs))
		for _, id := range roleIDs {
			present[id] = true
			if _, ok := doc.Income[id]; !ok {
				doc.Income[id] = 0
				added++
			}
		}
		for id := range doc.Income {
			if !present[id] {
				delete(doc.Income, id)
				removed++
			}
		}
		return nil
	})
	if err == nil && (added > 0 || removed > 0) {
		m.logger.InfoContext(ctx, "roles synced", slog.Int("added", added), slog.Int("removed", removed))
	}
	return added, removed, err
}

// Standing is one leaderboard row.
type Standing struct {
	ID      game.ID
	Balance int64
}

// Leaderboard returns every player ordered by balance, richest first.
func (m *Manager) Leaderboard(ctx context.Context) ([]Standing, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Leaderboard")
	defer span.End()

	var out []Standing
	err := m.view(ctx, "leaderboard", func(doc *game.Document) error {
		out = make([]Standing, 0, len(doc.Players))
		for id, p := range doc.Players {
			out = append(out, Standing{ID: id, Balance: p.Balance})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// RoleIncome is one income leaderboard row.
type RoleIncome struct {
	RoleID game.ID
	Income int64
}

// IncomeLeaderboard returns every income bucket ordered by value.
func (m *Manager) IncomeLeaderboard(ctx context.Context) ([]RoleIncome, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.IncomeLeaderboard")
	defer span.End()

	var out []RoleIncome
	err := m.view(ctx, "income_leaderboard", func(doc *game.Document) error {
		out = make([]RoleIncome, 0, len(doc.Income))
		for id, v := range doc.Income {
			out = append(out, RoleIncome{RoleID: id, Income: v})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Income != out[j].Income {
			return out[i].Income > out[j].Income
		}
		return out[i].RoleID < out[j].RoleID
	})
	return out, err
}
