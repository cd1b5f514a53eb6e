package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/game"
)

func itemOpts(withPlayer bool) []*discordgo.ApplicationCommandOption {
	var opts []*discordgo.ApplicationCommandOption
	if withPlayer {
		opts = append(opts, userOpt("player", "Receiving player", true))
	}
	return append(opts,
		strOpt("name", "Item name", true),
		choices(strOpt("type", "Equipment slot", true), game.EquipmentTypes),
		choices(strOpt("rarity", "Rarity tier", true), game.Rarities),
		intOpt("income", "Flat income while equipped", false),
		numOpt("income-percent", "Income multiplier percent while equipped (100 = none)", false),
		strOpt("discount", "Upgrade discounted while equipped", false),
		numOpt("discount-percent", "Discount percent on that upgrade", false),
		strOpt("description", "Flavour text", false),
	)
}

func (h *Handlers) adminCommands() []command {
	return []command{
		{admin: true, def: slash("money-add", "Give money to a player or to everyone",
			intOpt("amount", "Amount", true),
			userOpt("player", "Player to credit", false),
			boolOpt("all", "Credit every player"),
		), run: h.moneyAdd},
		{admin: true, def: slash("money-remove", "Take money from a player",
			userOpt("player", "Player to debit", true),
			intOpt("amount", "Amount", true),
		), run: h.moneyRemove},
		{admin: true, def: slash("money-reset", "Reset a balance to the default",
			userOpt("player", "Player to reset", true),
		), run: h.moneyReset},
		{admin: true, def: slash("income-add", "Raise a role's income",
			roleOpt("role", "Role", true),
			intOpt("value", "Amount to add", true),
		), run: h.incomeAdd},
		{admin: true, def: slash("income-remove", "Lower a role's income",
			roleOpt("role", "Role", true),
			intOpt("value", "Amount to remove", true),
		), run: h.incomeRemove},
		{admin: true, def: slash("upgrade-add", "Add or replace a shop upgrade",
			strOpt("name", "Upgrade name", true),
			intOpt("cost", "Unit cost", true),
			intOpt("income", "Income granted per unit", false),
			intOpt("manpower", "Manpower granted per unit", false),
			strOpt("require", "Upgrade that must be owned first", false),
			intOpt("max", "Per-player cap", false),
		), run: h.upgradeAdd},
		{admin: true, def: slash("upgrade-remove", "Remove a shop upgrade",
			strOpt("name", "Upgrade name", true),
		), run: h.upgradeRemove},
		{admin: true, def: slash("mission-add", "Add or replace an expedition",
			strOpt("name", "Expedition name", true),
			intOpt("cost", "Cost", true),
			numOpt("hours", "Duration in hours", true),
			intOpt("manpower", "Manpower required", true),
			intOpt("level", "Minimum level", true),
			intOpt("chance", "Success chance in percent", true),
			intOpt("xp", "Experience on success", true),
			numOpt("common", "Common loot weight", false),
			numOpt("uncommon", "Uncommon loot weight", false),
			numOpt("rare", "Rare loot weight", false),
			numOpt("epic", "Epic loot weight", false),
			numOpt("legendary", "Legendary loot weight", false),
			strOpt("description", "Flavour text", false),
		), run: h.missionAdd},
		{admin: true, def: slash("mission-remove", "Remove an expedition",
			strOpt("name", "Expedition name", true),
		), run: h.missionRemove},
		{admin: true, def: slash("loot-add", "Add or replace a loot table item", itemOpts(false)...), run: h.lootAdd},
		{admin: true, def: slash("loot-remove", "Remove a loot table item",
			strOpt("name", "Item name", true),
		), run: h.lootRemove},
		{admin: true, def: slash("item-give", "Give an item to a player", itemOpts(true)...), run: h.itemGive},
		{admin: true, def: slash("item-take", "Take an item from a player",
			userOpt("player", "Player", true),
			strOpt("name", "Item name", true),
		), run: h.itemTake},
		{admin: true, def: slash("xp-set", "Set a player's experience",
			userOpt("player", "Player", true),
			numOpt("xp", "Experience", true),
		), run: h.xpSet},
		{admin: true, def: slash("xp-add", "Add experience to a player",
			userOpt("player", "Player", true),
			numOpt("xp", "Experience", true),
		), run: h.xpAdd},
		{admin: true, def: slash("player-remove", "Delete a player record",
			userOpt("player", "Player", true),
		), run: h.playerRemove},
		{admin: true, def: slash("settings", "Show the game settings"), run: h.settings},
		{admin: true, def: slash("setting", "Change a game setting",
			strOpt("key", "Setting name", true),
			strOpt("value", "New value", true),
		), run: h.setting},
		{admin: true, def: slash("backup", "Write a backup now"), run: h.backup},
		{admin: true, def: slash("stats", "Show state document statistics"), run: h.stats},
	}
}

func (h *Handlers) moneyAdd(ctx context.Context, req Request) (string, error) {
	amount := req.integer("amount", 0)
	sym := h.symbol(ctx)
	if req.boolean("all") {
		n, err := h.econ.AddMoneyAll(ctx, amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Gave %s to %d players.", money(sym, amount), n), nil
	}
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	bal, err := h.econ.AddMoney(ctx, id, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Gave %s to %s. Balance: %s.", money(sym, amount), mention(id), money(sym, bal)), nil
}

func (h *Handlers) moneyRemove(ctx context.Context, req Request) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	bal, err := h.econ.RemoveMoney(ctx, id, req.integer("amount", 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now has %s.", mention(id), money(h.symbol(ctx), bal)), nil
}

func (h *Handlers) moneyReset(ctx context.Context, req Request) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	if err := h.econ.ResetMoney(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reset the balance of %s.", mention(id)), nil
}

func (h *Handlers) incomeAdd(ctx context.Context, req Request) (string, error) {
	return h.adjustIncome(ctx, req, h.econ.AddIncome)
}

func (h *Handlers) incomeRemove(ctx context.Context, req Request) (string, error) {
	return h.adjustIncome(ctx, req, h.econ.RemoveIncome)
}

func (h *Handlers) adjustIncome(ctx context.Context, req Request, fn func(context.Context, game.ID, int64) (int64, error)) (string, error) {
	rid, err := req.id("role")
	if err != nil {
		return "", err
	}
	v, err := fn(ctx, rid, req.integer("value", 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now earns %s.", roleMention(rid), money(h.symbol(ctx), v)), nil
}

func (h *Handlers) upgradeAdd(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	up := game.Upgrade{
		Cost:     req.integer("cost", 0),
		Income:   req.integer("income", 0),
		Manpower: req.integer("manpower", 0),
		Require:  req.str("require"),
	}
	var limit *int
	if req.has("max") {
		limit = game.Cap(int(req.integer("max", 0)))
	}
	if err := h.econ.AddUpgrade(ctx, name, up, limit); err != nil {
		return "", err
	}
	return fmt.Sprintf("Upgrade **%s** is in the shop for %s.", name, money(h.symbol(ctx), up.Cost)), nil
}

func (h *Handlers) upgradeRemove(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	if err := h.econ.RemoveUpgrade(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed upgrade **%s**.", name), nil
}

func (h *Handlers) missionAdd(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	ms := game.Mission{
		Description: req.str("description"),
		Cost:        req.integer("cost", 0),
		Hours:       req.number("hours", 0),
		Manpower:    req.integer("manpower", 0),
		Level:       int(req.integer("level", 0)),
		Chance:      int(req.integer("chance", 0)),
		XP:          req.integer("xp", 0),
		LootTable: game.LootWeights{
			Common:    req.number("common", 0),
			Uncommon:  req.number("uncommon", 0),
			Rare:      req.number("rare", 0),
			Epic:      req.number("epic", 0),
			Legendary: req.number("legendary", 0),
		},
	}
	if err := h.enc.AddMission(ctx, name, ms); err != nil {
		return "", err
	}
	return fmt.Sprintf("Expedition **%s** added.", name), nil
}

func (h *Handlers) missionRemove(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	if err := h.enc.RemoveMission(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed expedition **%s**.", name), nil
}

// item builds an item from the item options. Type and rarity are checked by
// the inventory engine.
func (r Request) item() game.Item {
	return game.Item{
		Description:     r.str("description"),
		Type:            game.EquipmentType(r.str("type")),
		Rarity:          game.Rarity(r.str("rarity")),
		Income:          r.integer("income", 0),
		IncomePercent:   r.number("income-percent", 100),
		Discount:        r.str("discount"),
		DiscountPercent: r.number("discount-percent", 0),
	}
}

func (h *Handlers) lootAdd(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	if err := h.inv.AddLootItem(ctx, name, req.item()); err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s** added to the loot table.", name), nil
}

func (h *Handlers) lootRemove(ctx context.Context, req Request) (string, error) {
	name := req.str("name")
	if err := h.inv.RemoveLootItem(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("**%s** removed from the loot table.", name), nil
}

func (h *Handlers) itemGive(ctx context.Context, req Request) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	stored, err := h.inv.GiveItem(ctx, id, req.str("name"), req.item())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Gave **%s** to %s.", stored, mention(id)), nil
}

func (h *Handlers) itemTake(ctx context.Context, req Request) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	name := req.str("name")
	if err := h.inv.TakeItem(ctx, id, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Took **%s** from %s.", name, mention(id)), nil
}

func (h *Handlers) xpSet(ctx context.Context, req Request) (string, error) {
	return h.adjustXP(ctx, req, h.econ.SetXP)
}

func (h *Handlers) xpAdd(ctx context.Context, req Request) (string, error) {
	return h.adjustXP(ctx, req, h.econ.AddXP)
}

func (h *Handlers) adjustXP(ctx context.Context, req Request, fn func(context.Context, game.ID, float64) (economy.LevelView, error)) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	v, err := fn(ctx, id, req.number("xp", 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is level %d with %s xp.", mention(id), v.Level, humanize.FtoaWithDigits(v.XP, 2)), nil
}

func (h *Handlers) playerRemove(ctx context.Context, req Request) (string, error) {
	id, err := req.id("player")
	if err != nil {
		return "", err
	}
	if err := h.econ.RemovePlayer(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed the record of %s.", mention(id)), nil
}

func (h *Handlers) settings(ctx context.Context, _ Request) (string, error) {
	s, err := h.econ.Settings(ctx)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", game.Internal("encoding settings: %v", err)
	}
	var values map[string]any
	if err := json.Unmarshal(b, &values); err != nil {
		return "", game.Internal("decoding settings: %v", err)
	}
	lines := make([]string, 0, len(values))
	for _, name := range economy.SettingNames() {
		if v, ok := values[name]; ok {
			lines = append(lines, fmt.Sprintf("`%s` = %v", name, v))
		}
	}
	return list("Settings", "No settings.", lines), nil
}

func (h *Handlers) setting(ctx context.Context, req Request) (string, error) {
	key, value := req.str("key"), req.str("value")
	if _, err := h.econ.SetSetting(ctx, req.User, key, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` set to `%s`.", key, value), nil
}

func (h *Handlers) backup(ctx context.Context, _ Request) (string, error) {
	path, err := h.backups.Once(ctx)
	if err != nil {
		return "", game.Internal("writing backup: %v", err)
	}
	return fmt.Sprintf("Backup written to `%s`. Next scheduled %s.", filepath.Base(path), h.relative(h.backups.Next())), nil
}

func (h *Handlers) stats(_ context.Context, _ Request) (string, error) {
	st, err := h.state.Stats()
	if err != nil {
		return "", game.Internal("reading stats: %v", err)
	}
	return fmt.Sprintf("State document: %s\nPlayers: %d\nUpgrades: %d\nExpeditions: %d\nLoot items: %d\nIncome roles: %d",
		humanize.Bytes(uint64(st.Bytes)), st.Players, st.Upgrades, st.Missions, st.LootItems, st.Roles), nil
}
