package encounter

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// NamedMission is a mission catalog row.
type NamedMission struct {
	Name    string
	Mission game.Mission
}

// Missions returns the mission catalog ordered by name.
func (m *Manager) Missions(ctx context.Context) ([]NamedMission, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Missions")
	defer span.End()

	var out []NamedMission
	err := m.view(ctx, "missions", func(doc *game.Document) error {
		for _, name := range game.SortedKeys(doc.Missions) {
			out = append(out, NamedMission{Name: name, Mission: doc.Missions[name]})
		}
		return nil
	})
	return out, err
}

// AddMission creates or replaces a mission.
func (m *Manager) AddMission(ctx context.Context, name string, ms game.Mission) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AddMission", trace.WithAttributes(attribute.String("mission", name)))
	defer span.End()

	name = strings.TrimSpace(name)
	err := m.update(ctx, "add_mission", func(doc *game.Document) error {
		if err := validateMission(name, ms); err != nil {
			return err
		}
		doc.Missions[name] = ms
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "mission/" + name, Value: "added"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "mission added",
		slog.String("mission", name),
		slog.Int64("cost", ms.Cost),
		slog.Float64("hours", ms.Hours),
	)
	return nil
}

// RemoveMission deletes a mission. Expeditions already under way resolve
// with the parameters they were started with.
func (m *Manager) RemoveMission(ctx context.Context, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveMission", trace.WithAttributes(attribute.String("mission", name)))
	defer span.End()

	err := m.update(ctx, "remove_mission", func(doc *game.Document) error {
		if _, ok := doc.Missions[name]; !ok {
			return game.NotFound(game.ErrMissionNotFound, "%q", name)
		}
		delete(doc.Missions, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "mission/" + name, Value: "removed"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "mission removed", slog.String("mission", name))
	return nil
}

func validateMission(name string, ms game.Mission) error {
	switch {
	case name == "":
		return game.Validation(game.ErrInvalidName, "mission name is empty")
	case ms.Cost < 0, ms.Manpower < 0, ms.XP < 0, ms.Level < 0, ms.Hours < 0:
		return game.Validation(game.ErrInvalidMission, "cost, manpower, xp, level and hours must not be negative")
	case ms.Chance < 0 || ms.Chance > 100:
		return game.Validation(game.ErrInvalidMission, "chance must be between 0 and 100")
	}
	for _, r := range game.LootRarities {
		if ms.LootTable.Weight(r) < 0 {
			return game.Validation(game.ErrInvalidMission, "%s loot weight is negative", r)
		}
	}
	return nil
}
