package inventory_test

import (
	"testing"

	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/inventory"
	"github.com/jensholdgaard/trinity/internal/random"
)

// scripted returns its values in order, reduced modulo n.
type scripted struct {
	vals []int
	i    int
}

func (s *scripted) IntN(n int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

func TestDraw(t *testing.T) {
	table := map[string]game.Item{
		"Cap":     {Rarity: game.Common, Type: game.Helmet},
		"Blade":   {Rarity: game.Rare, Type: game.Weapon},
		"Cuirass": {Rarity: game.Rare, Type: game.Armor},
		"Crown":   {Rarity: game.EventRarity, Type: game.Helmet},
	}

	tests := []struct {
		name       string
		weights    game.LootWeights
		rolls      []int
		wantRarity game.Rarity
		wantName   string
	}{
		{
			name:       "first tier",
			weights:    game.LootWeights{Common: 1, Rare: 0.5},
			rolls:      []int{99, 0},
			wantRarity: game.Common,
			wantName:   "Cap",
		},
		{
			name:       "zero weight tiers are skipped",
			weights:    game.LootWeights{Common: 1, Rare: 0.5},
			rolls:      []int{120, 1},
			wantRarity: game.Rare,
			wantName:   "Cuirass",
		},
		{
			name:       "tier without items",
			weights:    game.LootWeights{Legendary: 2},
			rolls:      []int{5},
			wantRarity: game.Legendary,
		},
		{
			name:    "all weights zero",
			weights: game.LootWeights{},
			rolls:   []int{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := inventory.Draw(&scripted{vals: tt.rolls}, tt.weights, table)
			if d.Rarity != tt.wantRarity {
				t.Errorf("Rarity = %q, want %q", d.Rarity, tt.wantRarity)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if d.Found() != (tt.wantName != "") {
				t.Errorf("Found() = %v", d.Found())
			}
		})
	}
}

func TestDraw_Proportional(t *testing.T) {
	table := map[string]game.Item{
		"Cap":   {Rarity: game.Common},
		"Relic": {Rarity: game.Legendary},
	}
	src := random.NewSeeded(42)
	counts := map[game.Rarity]int{}
	const n = 20000
	for range n {
		counts[inventory.Draw(src, game.LootWeights{Common: 3, Legendary: 1}, table).Rarity]++
	}
	share := float64(counts[game.Common]) / n
	if share < 0.72 || share > 0.78 {
		t.Errorf("common share = %.3f, want about 0.75", share)
	}
	if counts[game.Common]+counts[game.Legendary] != n {
		t.Errorf("unexpected tiers drawn: %v", counts)
	}
}

func TestGrant(t *testing.T) {
	p := game.NewPlayer(0)
	sword := game.Item{Rarity: game.Rare, Type: game.Weapon}

	name, ok := inventory.Grant(p, "Sword", sword, 2)
	if !ok || name != "Sword" {
		t.Fatalf("Grant() = %q, %v", name, ok)
	}
	name, ok = inventory.Grant(p, "Sword", sword, 2)
	if !ok || name != "Sword (2)" {
		t.Fatalf("second Grant() = %q, %v, want Sword (2)", name, ok)
	}
	if _, ok := inventory.Grant(p, "Sword", sword, 2); ok {
		t.Fatal("Grant() beyond the cap succeeded")
	}
	if len(p.Inventory) != 2 {
		t.Errorf("inventory size = %d, want 2", len(p.Inventory))
	}
}
