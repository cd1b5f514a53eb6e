package game

import (
	"fmt"
	"strings"
)

// Stat is one of the seven fixed skills a player can invest points in.
type Stat string

const (
	Diplomacy   Stat = "diplomacy"
	Warlord     Stat = "warlord"
	Intrique    Stat = "intrique"
	Stewardship Stat = "stewardship"
	Trading     Stat = "trading"
	Bartering   Stat = "bartering"
	Learning    Stat = "learning"
)

// Stats lists every skill in display order.
var Stats = []Stat{Diplomacy, Warlord, Intrique, Stewardship, Trading, Bartering, Learning}

// ParseStat returns the Stat named s, case-insensitively.
func ParseStat(s string) (Stat, error) {
	want := Stat(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Stats {
		if st == want {
			return st, nil
		}
	}
	return "", Validation(ErrUnknownStat, "no skill named %q", s)
}

// Rarity is an item quality tier.
type Rarity string

const (
	Common    Rarity = "common"
	Uncommon  Rarity = "uncommon"
	Rare      Rarity = "rare"
	Epic      Rarity = "epic"
	Legendary Rarity = "legendary"
	// EventRarity is only granted by admins; it never drops from loot.
	EventRarity Rarity = "event"
)

// Rarities lists every tier from lowest to highest.
var Rarities = []Rarity{Common, Uncommon, Rare, Epic, Legendary, EventRarity}

// LootRarities lists the tiers a mission loot table assigns weights to.
var LootRarities = []Rarity{Common, Uncommon, Rare, Epic, Legendary}

// Color returns the display color of the tier.
func (r Rarity) Color() int {
	switch r {
	case Common:
		return 0xABABAB
	case Uncommon:
		return 0x12CC00
	case Rare:
		return 0x009DE3
	case Epic:
		return 0x8C25FF
	case Legendary:
		return 0xFF8F00
	case EventRarity:
		return 0xFF0000
	}
	return 0xFFFF00
}

// ParseRarity returns the Rarity named s.
func ParseRarity(s string) (Rarity, error) {
	want := Rarity(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range Rarities {
		if r == want {
			return r, nil
		}
	}
	return "", Validation(ErrInvalidRarity, "%q is not one of %v", s, Rarities)
}

// EquipmentType is the slot an item occupies when equipped.
type EquipmentType string

const (
	Helmet   EquipmentType = "helmet"
	Weapon   EquipmentType = "weapon"
	Armor    EquipmentType = "armor"
	Leggins  EquipmentType = "leggins"
	Boots    EquipmentType = "boots"
	Artefact EquipmentType = "artefact"
)

// EquipmentTypes lists every slot type.
var EquipmentTypes = []EquipmentType{Helmet, Weapon, Armor, Leggins, Boots, Artefact}

// ParseEquipmentType returns the EquipmentType named s.
func ParseEquipmentType(s string) (EquipmentType, error) {
	want := EquipmentType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range EquipmentTypes {
		if t == want {
			return t, nil
		}
	}
	return "", Validation(ErrInvalidItemType, "%q is not one of %v", s, EquipmentTypes)
}

func (t EquipmentType) String() string { return string(t) }

func (r Rarity) String() string { return string(r) }

func (s Stat) String() string { return string(s) }

// Title returns the capitalised stat name for display.
func (s Stat) Title() string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%s%s", strings.ToUpper(string(s[:1])), s[1:])
}
