package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/trinity/internal/inventory"
)

func (h *Handlers) itemCommands() []command {
	item := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{strOpt("item", desc, true)}
	}
	return []command{
		{def: slash("inventory", "Show your unequipped items"), run: h.inventory},
		{def: slash("equipped", "Show your equipped items"), run: h.equipped},
		{def: slash("equip", "Equip an item", item("Item to equip")...), run: h.equip},
		{def: slash("unequip", "Unequip an item", item("Item to unequip")...), run: h.unequip},
		{def: slash("recycle", "Destroy an item from your inventory", item("Item to destroy")...), run: h.recycle},
		{def: slash("loot", "Show the expedition loot table"), run: h.lootTable},
		{def: slash("market", "Show every item for sale"), run: h.market},
		{def: slash("listings", "Show the items a player is selling", userOpt("player", "Seller, yourself by default", false)), run: h.listings},
		{def: slash("sell", "List an item on the market",
			strOpt("item", "Item to sell", true),
			intOpt("price", "Asking price", true),
		), run: h.sell},
		{def: slash("retract", "Take an item off the market", item("Listed item")...), run: h.retract},
		{def: slash("purchase", "Buy an item from another player",
			userOpt("seller", "Seller", true),
			strOpt("item", "Listed item", true),
		), run: h.purchase},
	}
}

func (h *Handlers) holdings(ctx context.Context, title, empty string, hs []inventory.Holding) string {
	sym := h.symbol(ctx)
	lines := make([]string, 0, len(hs))
	for _, x := range hs {
		lines = append(lines, itemLine(sym, x.Name, x.Item))
	}
	return list(title, empty, lines)
}

func (h *Handlers) inventory(ctx context.Context, req Request) (string, error) {
	hs, err := h.inv.Inventory(ctx, req.User)
	if err != nil {
		return "", err
	}
	return h.holdings(ctx, "Inventory", "Your inventory is empty.", hs), nil
}

func (h *Handlers) equipped(ctx context.Context, req Request) (string, error) {
	hs, err := h.inv.Equipped(ctx, req.User)
	if err != nil {
		return "", err
	}
	return h.holdings(ctx, "Equipped", "Nothing equipped.", hs), nil
}

func (h *Handlers) equip(ctx context.Context, req Request) (string, error) {
	name := req.str("item")
	it, err := h.inv.Equip(ctx, req.User, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Equipped **%s** as your %s.", name, it.Type), nil
}

func (h *Handlers) unequip(ctx context.Context, req Request) (string, error) {
	name := req.str("item")
	if _, err := h.inv.Unequip(ctx, req.User, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved **%s** back to your inventory.", name), nil
}

func (h *Handlers) recycle(ctx context.Context, req Request) (string, error) {
	name := req.str("item")
	if err := h.inv.Recycle(ctx, req.User, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Recycled **%s**.", name), nil
}

func (h *Handlers) lootTable(ctx context.Context, _ Request) (string, error) {
	hs, err := h.inv.LootTable(ctx)
	if err != nil {
		return "", err
	}
	return h.holdings(ctx, "Loot table", "The loot table is empty.", hs), nil
}

func (h *Handlers) listingLines(ctx context.Context, ls []inventory.Listing) []string {
	sym := h.symbol(ctx)
	lines := make([]string, 0, len(ls))
	for _, l := range ls {
		lines = append(lines, fmt.Sprintf("%s for %s by %s", itemLine(sym, l.Name, l.Item), money(sym, l.Price), mention(l.Seller)))
	}
	return lines
}

func (h *Handlers) market(ctx context.Context, _ Request) (string, error) {
	ls, err := h.inv.Market(ctx)
	if err != nil {
		return "", err
	}
	return list("Market", "Nothing is for sale.", h.listingLines(ctx, ls)), nil
}

func (h *Handlers) listings(ctx context.Context, req Request) (string, error) {
	id, err := req.target()
	if err != nil {
		return "", err
	}
	ls, err := h.inv.Listings(ctx, id)
	if err != nil {
		return "", err
	}
	return list("Listings", "No items listed.", h.listingLines(ctx, ls)), nil
}

func (h *Handlers) sell(ctx context.Context, req Request) (string, error) {
	name, price := req.str("item"), req.integer("price", 0)
	if err := h.inv.ListItem(ctx, req.User, name, price); err != nil {
		return "", err
	}
	return fmt.Sprintf("Listed **%s** for %s.", name, money(h.symbol(ctx), price)), nil
}

func (h *Handlers) retract(ctx context.Context, req Request) (string, error) {
	name := req.str("item")
	if err := h.inv.RetractListing(ctx, req.User, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s** is no longer for sale.", name), nil
}

func (h *Handlers) purchase(ctx context.Context, req Request) (string, error) {
	seller, err := req.id("seller")
	if err != nil {
		return "", err
	}
	sale, err := h.inv.BuyListing(ctx, req.User, seller, req.str("item"))
	if err != nil {
		return "", err
	}
	sym := h.symbol(ctx)
	msg := fmt.Sprintf("Bought **%s** from %s for %s", sale.Name, mention(seller), money(sym, sale.Paid))
	if sale.Discount > 0 {
		msg += fmt.Sprintf(" (%s trading discount)", percent(sale.Discount))
	}
	return msg + fmt.Sprintf(". Balance: %s.", money(sym, sale.BuyerBalance)), nil
}
