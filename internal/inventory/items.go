package inventory

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/trinity/internal/event"
	"github.com/jensholdgaard/trinity/internal/game"
)

// Holding is a named item together with its market price, if listed.
type Holding struct {
	Name  string
	Item  game.Item
	Price int64
	// Listed reports whether the item is currently for sale.
	Listed bool
}

func holdings(items map[string]game.Item, shop map[string]int64, skipListed bool) []Holding {
	out := make([]Holding, 0, len(items))
	for _, name := range game.SortedKeys(items) {
		price, listed := shop[name]
		if listed && skipListed {
			continue
		}
		out = append(out, Holding{Name: name, Item: items[name], Price: price, Listed: listed})
	}
	return out
}

// Inventory returns the player's unequipped items that are not for sale.
func (m *Manager) Inventory(ctx context.Context, id game.ID) ([]Holding, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Inventory", trace.WithAttributes(attribute.Int64("player_id", int64(id))))
	defer span.End()

	var out []Holding
	err := m.view(ctx, "inventory", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		out = holdings(p.Inventory, p.Shop, true)
		return nil
	})
	return out, err
}

// Equipped returns the player's equipped items.
func (m *Manager) Equipped(ctx context.Context, id game.ID) ([]Holding, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Equipped", trace.WithAttributes(attribute.Int64("player_id", int64(id))))
	defer span.End()

	var out []Holding
	err := m.view(ctx, "equipped", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		out = holdings(p.Equipped, nil, false)
		return nil
	})
	return out, err
}

// Equip moves an item from the inventory into its equipment slot. Only one
// item per equipment type may be equipped.
func (m *Manager) Equip(ctx context.Context, id game.ID, name string) (game.Item, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Equip", itemAttrs(id, name))
	defer span.End()

	var it game.Item
	err := m.update(ctx, "equip", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		var ok bool
		if it, ok = p.Inventory[name]; !ok {
			return game.NotFound(game.ErrItemNotFound, "%q is not in your inventory", name)
		}
		if _, listed := p.Shop[name]; listed {
			return game.Validation(game.ErrItemListed, "retract %q from the market first", name)
		}
		for other, eq := range p.Equipped {
			if eq.Type == it.Type {
				return game.Validation(game.ErrSlotOccupied, "%s slot holds %q", it.Type, other)
			}
		}
		delete(p.Inventory, name)
		p.Equipped[name] = it
		return nil
	})
	if err != nil {
		return it, err
	}
	m.record(ctx, m.itemEvent(id, event.ItemEquipped, event.ItemData{Name: name}))
	m.logger.InfoContext(ctx, "item equipped",
		slog.String("player_id", id.String()),
		slog.String("item", name),
		slog.String("type", it.Type.String()),
	)
	return it, nil
}

// Unequip moves an equipped item back into the inventory.
func (m *Manager) Unequip(ctx context.Context, id game.ID, name string) (game.Item, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Unequip", itemAttrs(id, name))
	defer span.End()

	var it game.Item
	err := m.update(ctx, "unequip", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		var ok bool
		if it, ok = p.Equipped[name]; !ok {
			return game.Validation(game.ErrNotEquipped, "%q", name)
		}
		delete(p.Equipped, name)
		p.Inventory[name] = it
		return nil
	})
	if err != nil {
		return it, err
	}
	m.record(ctx, m.itemEvent(id, event.ItemUnequipped, event.ItemData{Name: name}))
	m.logger.InfoContext(ctx, "item unequipped", slog.String("player_id", id.String()), slog.String("item", name))
	return it, nil
}

// Recycle destroys an unlisted inventory item.
func (m *Manager) Recycle(ctx context.Context, id game.ID, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Recycle", itemAttrs(id, name))
	defer span.End()

	err := m.update(ctx, "recycle", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if _, ok := p.Inventory[name]; !ok {
			return game.NotFound(game.ErrItemNotFound, "%q is not in your inventory", name)
		}
		if _, listed := p.Shop[name]; listed {
			return game.Validation(game.ErrItemListed, "retract %q from the market first", name)
		}
		delete(p.Inventory, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.itemEvent(id, event.ItemRecycled, event.ItemData{Name: name}))
	m.logger.InfoContext(ctx, "item recycled", slog.String("player_id", id.String()), slog.String("item", name))
	return nil
}

// GiveItem places a new item in a player's inventory and returns the name it
// was stored under. The inventory cap does not apply.
func (m *Manager) GiveItem(ctx context.Context, id game.ID, name string, it game.Item) (string, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.GiveItem", itemAttrs(id, name))
	defer span.End()

	name = strings.TrimSpace(name)
	var stored string
	err := m.update(ctx, "give_item", func(doc *game.Document) error {
		if err := validateItem(name, &it); err != nil {
			return err
		}
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		stored = p.UniqueItemName(name)
		p.Inventory[stored] = it
		return nil
	})
	if err != nil {
		return "", err
	}
	m.record(ctx, m.itemEvent(id, event.ItemGranted, event.ItemData{Name: stored, Counterparty: "admin"}))
	m.logger.InfoContext(ctx, "item given",
		slog.String("player_id", id.String()),
		slog.String("item", stored),
		slog.String("rarity", it.Rarity.String()),
	)
	return stored, nil
}

// TakeItem removes an item from a player, equipped or not. A market listing
// for it is dropped as well.
func (m *Manager) TakeItem(ctx context.Context, id game.ID, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.TakeItem", itemAttrs(id, name))
	defer span.End()

	err := m.update(ctx, "take_item", func(doc *game.Document) error {
		p, err := doc.Player(id)
		if err != nil {
			return err
		}
		if !p.HasItem(name) {
			return game.NotFound(game.ErrItemNotFound, "%q", name)
		}
		delete(p.Inventory, name)
		delete(p.Equipped, name)
		delete(p.Shop, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.record(ctx, m.itemEvent(id, event.ItemTaken, event.ItemData{Name: name, Counterparty: "admin"}))
	m.logger.InfoContext(ctx, "item taken", slog.String("player_id", id.String()), slog.String("item", name))
	return nil
}

// validateItem checks the name and enumerations of it and normalises them.
func validateItem(name string, it *game.Item) error {
	if name == "" {
		return game.Validation(game.ErrInvalidName, "item name is empty")
	}
	r, err := game.ParseRarity(string(it.Rarity))
	if err != nil {
		return err
	}
	t, err := game.ParseEquipmentType(string(it.Type))
	if err != nil {
		return err
	}
	if it.IncomePercent < 0 || it.DiscountPercent < 0 {
		return game.Validation(game.ErrInvalidAmount, "percentages must not be negative")
	}
	it.Rarity, it.Type, it.Equipped = r, t, false
	return nil
}
