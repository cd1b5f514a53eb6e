package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind.
type Type string

const (
	PlayerJoined  Type = "player.joined"
	PlayerRemoved Type = "player.removed"
	SkillAssigned Type = "player.skill_assigned"
	LevelGained   Type = "player.level_gained"
	XPChanged     Type = "player.xp_changed"

	MoneyEarned      Type = "money.earned"
	MoneyTransferred Type = "money.transferred"
	MoneyAdjusted    Type = "money.adjusted"

	UpgradeBought  Type = "upgrade.bought"
	CatalogChanged Type = "catalog.changed"
	IncomeChanged  Type = "income.changed"
	SettingChanged Type = "setting.changed"

	ItemEquipped   Type = "item.equipped"
	ItemUnequipped Type = "item.unequipped"
	ItemRecycled   Type = "item.recycled"
	ItemGranted    Type = "item.granted"
	ItemTaken      Type = "item.taken"
	ItemListed     Type = "market.listed"
	ItemRetracted  Type = "market.retracted"
	ItemSold       Type = "market.sold"

	ExpeditionStarted  Type = "expedition.started"
	ExpeditionResolved Type = "expedition.resolved"
	AttackStarted      Type = "attack.started"
	AttackResolved     Type = "attack.resolved"

	BackupWritten Type = "backup.written"
)

// Event represents a single ledger entry.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// New builds an event with a fresh id. Payloads that cannot be encoded are
// stored as null.
func New(aggregateID string, typ Type, data any, at time.Time) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Event{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Type:        typ,
		Data:        raw,
		Version:     1,
		CreatedAt:   at,
	}
}

// MoneyData is the payload for money and upgrade events.
type MoneyData struct {
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balance_after"`
	Counterparty string `json:"counterparty,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// UpgradeData is the payload for UpgradeBought events.
type UpgradeData struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Cost     int64  `json:"cost"`
	RoleID   string `json:"role_id,omitempty"`
}

// ItemData is the payload for item and market events.
type ItemData struct {
	Name         string `json:"name"`
	Price        int64  `json:"price,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}

// EncounterData is the payload for expedition and attack events.
type EncounterData struct {
	EncounterID string    `json:"encounter_id"`
	Kind        string    `json:"kind"`
	Target      string    `json:"target,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	ResolveAt   time.Time `json:"resolve_at"`
	XP          float64   `json:"xp,omitempty"`
	Loot        string    `json:"loot,omitempty"`
}

// ChangeData is the payload for catalog, income and setting changes.
type ChangeData struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	By    string `json:"by,omitempty"`
}
