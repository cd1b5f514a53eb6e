// Package game defines the typed state aggregate shared by every engine
// component: players, the upgrade/mission/loot catalogs, income buckets and
// the global settings. Everything here is plain data; the rules that mutate it
// live in the economy, inventory and encounter packages.
package game

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// ID is an opaque platform identifier (user or role snowflake).
type ID int64

// ParseID parses a decimal platform id.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return ID(v), nil
}

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Role is a platform role held by a player at the time of a command.
type Role struct {
	ID   ID
	Name string
}

// UnixTime is a wall-clock instant stored as fractional unix seconds.
// The zero value means "never".
type UnixTime float64

// At converts t to a UnixTime.
func At(t time.Time) UnixTime {
	return UnixTime(float64(t.UnixNano()) / float64(time.Second))
}

// Time returns u as a time.Time.
func (u UnixTime) Time() time.Time {
	sec, frac := math.Modf(float64(u))
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// IsZero reports whether u is unset.
func (u UnixTime) IsZero() bool { return u == 0 }

// Item is an equipment piece owned by a player or listed in the loot table.
type Item struct {
	Description     string        `json:"description,omitempty"`
	Type            EquipmentType `json:"type"`
	Rarity          Rarity        `json:"rarity"`
	Income          int64         `json:"income"`
	IncomePercent   float64       `json:"income_percent"`
	Discount        string        `json:"discount,omitempty"`
	DiscountPercent float64       `json:"discount_percent"`
	Equipped        bool          `json:"equiped"`
}

// Player is the per-member record.
type Player struct {
	Balance     int64            `json:"balance"`
	LastWork    UnixTime         `json:"last-work"`
	XP          float64          `json:"xp"`
	Level       int              `json:"level"`
	Skillpoints int              `json:"skillpoints"`
	Manpower    int64            `json:"manpower"`
	Stats       map[Stat]int     `json:"stats"`
	Upgrades    map[string]int   `json:"upgrade"`
	UpgradeCaps map[string]*int  `json:"maxupgrade"`
	Inventory   map[string]Item  `json:"inventory"`
	Equipped    map[string]Item  `json:"equiped"`
	Shop        map[string]int64 `json:"player_shop"`
}

// NewPlayer returns a player with every field initialised.
func NewPlayer(balance int64) *Player {
	p := &Player{Balance: balance, Level: 1}
	p.Backfill()
	return p
}

// Backfill installs defaults for fields missing from older snapshots.
// It reports whether anything changed.
func (p *Player) Backfill() bool {
	changed := false
	if p.Level < 1 {
		p.Level = 1
		changed = true
	}
	if p.Stats == nil {
		p.Stats = make(map[Stat]int, len(Stats))
		changed = true
	}
	for _, s := range Stats {
		if _, ok := p.Stats[s]; !ok {
			p.Stats[s] = 0
			changed = true
		}
	}
	if p.Upgrades == nil {
		p.Upgrades = make(map[string]int)
		changed = true
	}
	if p.UpgradeCaps == nil {
		p.UpgradeCaps = make(map[string]*int)
		changed = true
	}
	if p.Inventory == nil {
		p.Inventory = make(map[string]Item)
		changed = true
	}
	if p.Equipped == nil {
		p.Equipped = make(map[string]Item)
		changed = true
	}
	if p.Shop == nil {
		p.Shop = make(map[string]int64)
		changed = true
	}
	return changed
}

// Stat returns the points invested in s.
func (p *Player) Stat(s Stat) int { return p.Stats[s] }

// HasItem reports whether name is held in the inventory or equipped.
func (p *Player) HasItem(name string) bool {
	if _, ok := p.Inventory[name]; ok {
		return true
	}
	_, ok := p.Equipped[name]
	return ok
}

// UniqueItemName returns name, or name with a " (n)" suffix (n >= 2) when
// the player already holds an item of that name.
func (p *Player) UniqueItemName(name string) string {
	if !p.HasItem(name) {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !p.HasItem(candidate) {
			return candidate
		}
	}
}

// Upgrade is a catalog entry purchasable with the buy operation.
type Upgrade struct {
	Cost     int64  `json:"cost"`
	Income   int64  `json:"income"`
	Manpower int64  `json:"manpower"`
	Require  string `json:"require,omitempty"`
}

// LootWeights are the relative odds of each loot tier for a mission.
type LootWeights struct {
	Common    float64 `json:"common"`
	Uncommon  float64 `json:"uncommon"`
	Rare      float64 `json:"rare"`
	Epic      float64 `json:"epic"`
	Legendary float64 `json:"legendary"`
}

// Weight returns the weight assigned to r.
func (w LootWeights) Weight(r Rarity) float64 {
	switch r {
	case Common:
		return w.Common
	case Uncommon:
		return w.Uncommon
	case Rare:
		return w.Rare
	case Epic:
		return w.Epic
	case Legendary:
		return w.Legendary
	}
	return 0
}

// Mission is an expedition catalog entry.
type Mission struct {
	Description string      `json:"description,omitempty"`
	Cost        int64       `json:"cost"`
	Hours       float64     `json:"hours"`
	Manpower    int64       `json:"manpower"`
	Level       int         `json:"level"`
	Chance      int         `json:"chance"`
	XP          int64       `json:"xp"`
	LootTable   LootWeights `json:"loot-table"`
}

// Duration returns the mission length.
func (m Mission) Duration() time.Duration {
	return time.Duration(m.Hours * float64(time.Hour))
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
