package inventory

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/random"
)

// Drop is the result of a loot draw.
type Drop struct {
	// Rarity is the drawn tier; empty when every weight was zero.
	Rarity game.Rarity
	// Name is the catalog name of the drawn item; empty when the tier has
	// no catalog items.
	Name string
	Item game.Item
}

// Found reports whether the draw produced an item.
func (d Drop) Found() bool { return d.Name != "" }

// Draw picks a tier with probability proportional to its weight (scaled by
// 100 and truncated) and then a uniformly random catalog item of that tier.
func Draw(src random.Source, weights game.LootWeights, table map[string]game.Item) Drop {
	total := 0
	scaled := make([]int, len(game.LootRarities))
	for i, r := range game.LootRarities {
		if w := int(weights.Weight(r) * 100); w > 0 {
			scaled[i] = w
			total += w
		}
	}
	if total == 0 {
		return Drop{}
	}

	var d Drop
	n := src.IntN(total)
	for i, r := range game.LootRarities {
		if n < scaled[i] {
			d.Rarity = r
			break
		}
		n -= scaled[i]
	}

	var names []string
	for _, name := range game.SortedKeys(table) {
		if table[name].Rarity == d.Rarity {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return d
	}
	d.Name = names[src.IntN(len(names))]
	d.Item = table[d.Name]
	return d
}

// Grant stores it in the player's inventory under a unique name unless the
// inventory already holds maxItems entries. It returns the stored name and
// whether the item was granted.
func Grant(p *game.Player, name string, it game.Item, maxItems int) (string, bool) {
	if len(p.Inventory) >= maxItems {
		return "", false
	}
	stored := p.UniqueItemName(name)
	it.Equipped = false
	p.Inventory[stored] = it
	return stored, true
}

// LootTable returns the loot catalog ordered by name.
func (m *Manager) LootTable(ctx context.Context) ([]Holding, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.LootTable")
	defer span.End()

	var out []Holding
	err := m.view(ctx, "loot_table", func(doc *game.Document) error {
		out = holdings(doc.LootTable, nil, false)
		return nil
	})
	return out, err
}

// AddLootItem creates or replaces a loot catalog entry.
func (m *Manager) AddLootItem(ctx context.Context, name string, it game.Item) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AddLootItem", trace.WithAttributes(attribute.String("item", name)))
	defer span.End()

	name = strings.TrimSpace(name)
	err := m.update(ctx, "add_loot_item", func(doc *game.Document) error {
		if err := validateItem(name, &it); err != nil {
			return err
		}
		doc.LootTable[name] = it
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "loot/" + name, Value: "added"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "loot item added", slog.String("item", name), slog.String("rarity", it.Rarity.String()))
	return nil
}

// RemoveLootItem deletes a loot catalog entry. Items already dropped are
// kept by their owners.
func (m *Manager) RemoveLootItem(ctx context.Context, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveLootItem", trace.WithAttributes(attribute.String("item", name)))
	defer span.End()

	err := m.update(ctx, "remove_loot_item", func(doc *game.Document) error {
		if _, ok := doc.LootTable[name]; !ok {
			return game.NotFound(game.ErrItemNotFound, "%q is not in the loot table", name)
		}
		delete(doc.LootTable, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, event.New("catalog", event.CatalogChanged, event.ChangeData{Key: "loot/" + name, Value: "removed"}, m.clock.Now()))
	m.logger.InfoContext(ctx, "loot item removed", slog.String("item", name))
	return nil
}
