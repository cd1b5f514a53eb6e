package game_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/trinity/internal/game"
)

func TestParseID(t *testing.T) {
	id, err := game.ParseID("123456789012345678")
	if err != nil {
		t.Fatalf("ParseID() error: %v", err)
	}
	if id.String() != "123456789012345678" {
		t.Errorf("String() = %q", id.String())
	}
	if _, err := game.ParseID("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestUnixTime_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 500_000_000, time.UTC)
	u := game.At(now)
	if got := u.Time(); got.Sub(now).Abs() > time.Millisecond {
		t.Errorf("Time() = %v, want %v", got, now)
	}
	if u.IsZero() {
		t.Error("expected non-zero")
	}
}

func TestParseEnums(t *testing.T) {
	if s, err := game.ParseStat(" Warlord "); err != nil || s != game.Warlord {
		t.Errorf("ParseStat() = %v, %v", s, err)
	}
	if _, err := game.ParseStat("charisma"); !errors.Is(err, game.ErrUnknownStat) {
		t.Errorf("ParseStat(charisma) error = %v, want ErrUnknownStat", err)
	}
	if r, err := game.ParseRarity("EPIC"); err != nil || r != game.Epic {
		t.Errorf("ParseRarity() = %v, %v", r, err)
	}
	if _, err := game.ParseRarity("mythic"); game.KindOf(err) != game.KindValidation {
		t.Errorf("ParseRarity(mythic) kind = %v, want validation", game.KindOf(err))
	}
	if typ, err := game.ParseEquipmentType("boots"); err != nil || typ != game.Boots {
		t.Errorf("ParseEquipmentType() = %v, %v", typ, err)
	}
	if game.Stewardship.Title() != "Stewardship" {
		t.Errorf("Title() = %q", game.Stewardship.Title())
	}
}

func TestPlayer_UniqueItemName(t *testing.T) {
	p := game.NewPlayer(0)
	p.Inventory["Sword"] = game.Item{}
	p.Equipped["Sword (2)"] = game.Item{}

	tests := []struct {
		name string
		want string
	}{
		{"Shield", "Shield"},
		{"Sword", "Sword (3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.UniqueItemName(tt.name); got != tt.want {
				t.Errorf("UniqueItemName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDocument_EnsurePlayerFansOutCatalog(t *testing.T) {
	doc := game.NewDocument()
	doc.DefaultBalance = 250
	doc.Upgrades["farm"] = game.Upgrade{Cost: 100}
	doc.MaxUpgrade["farm"] = game.Cap(2)

	p, created := doc.EnsurePlayer(5)
	if !created {
		t.Fatal("expected new player")
	}
	if p.Balance != 250 || p.Level != 1 {
		t.Errorf("player = balance %d level %d, want 250 and 1", p.Balance, p.Level)
	}
	if c := p.UpgradeCaps["farm"]; c == nil || *c != 2 {
		t.Errorf("UpgradeCaps[farm] = %v, want 2", c)
	}
	*doc.MaxUpgrade["farm"] = 9
	if *p.UpgradeCaps["farm"] != 2 {
		t.Error("player cap must not alias the catalog cap")
	}

	if _, created := doc.EnsurePlayer(5); created {
		t.Error("expected existing player")
	}
}

func TestDocument_PlayerNotFound(t *testing.T) {
	doc := game.NewDocument()
	_, err := doc.Player(1)
	if !errors.Is(err, game.ErrPlayerNotFound) {
		t.Errorf("error = %v, want ErrPlayerNotFound", err)
	}
	if game.KindOf(err) != game.KindNotFound {
		t.Errorf("KindOf = %v, want not_found", game.KindOf(err))
	}
}

func TestDocument_JSONKeys(t *testing.T) {
	doc := game.NewDocument()
	p, _ := doc.EnsurePlayer(42)
	p.LastWork = 1700000000
	p.Inventory["Helm"] = game.Item{Type: game.Helmet, Rarity: game.Rare, Equipped: true}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"players", "income", "upgrade", "maxupgrade", "missions", "loot-table", "deltatime", "currency_symbol", "schema_version"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var players map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw["players"], &players); err != nil {
		t.Fatal(err)
	}
	rec, ok := players["42"]
	if !ok {
		t.Fatal("expected player keyed by decimal id")
	}
	for _, key := range []string{"last-work", "upgrade", "maxupgrade", "equiped", "player_shop"} {
		if _, ok := rec[key]; !ok {
			t.Errorf("missing player key %q", key)
		}
	}
}

func TestSettings_Rate(t *testing.T) {
	s := game.DefaultSettings()
	if s.Rate(game.Learning) != 0.25 {
		t.Errorf("Rate(learning) = %v, want 0.25", s.Rate(game.Learning))
	}
	if s.Rate(game.Trading) != 0.025 {
		t.Errorf("Rate(trading) = %v, want 0.025", s.Rate(game.Trading))
	}
	if !s.RoleDisabled("@everyone") {
		t.Error("expected @everyone disabled")
	}
	if s.WorkInterval() != 2*time.Hour {
		t.Errorf("WorkInterval() = %v, want 2h", s.WorkInterval())
	}
}

func TestLootWeights_Weight(t *testing.T) {
	w := game.LootWeights{Common: 50, Legendary: 1}
	if w.Weight(game.Common) != 50 || w.Weight(game.Legendary) != 1 || w.Weight(game.EventRarity) != 0 {
		t.Errorf("unexpected weights: %+v", w)
	}
}
