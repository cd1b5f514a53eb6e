package game

import "time"

// Settings are the scalar game-balance values stored alongside the state.
type Settings struct {
	Prefix            string   `json:"prefix"`
	CurrencySymbol    string   `json:"currency_symbol"`
	DisabledRoles     []string `json:"disabled_roles"`
	DeltaTime         int64    `json:"deltatime"`
	DefaultRole       string   `json:"default_role"`
	BackupTime        int64    `json:"backup_time"`
	Backups           int      `json:"backups"`
	WorkRange         float64  `json:"work_range"`
	JoinDM            string   `json:"join_dm"`
	DefaultBalance    int64    `json:"default_balance"`
	LevelMultiplier   float64  `json:"level_multiplier"`
	XPForLevel        float64  `json:"xp_for_level"`
	MaximumAttackTime float64  `json:"maximum_attack_time"`
	AllowAttackIncome bool     `json:"allow_attack_income"`
	AttackIncomeCap   int64    `json:"attack_income_cap"`
	MaxPlayerItems    int      `json:"max_player_items"`
	BlockAsyncs       bool     `json:"block_asyncs"`
	DiplomacyRate     float64  `json:"diplomacy_rate"`
	WarlordRate       float64  `json:"warlord_rate"`
	IntriqueRate      float64  `json:"intrique_rate"`
	StewardshipRate   float64  `json:"stewardship_rate"`
	TradingRate       float64  `json:"trading_rate"`
	BarteringRate     float64  `json:"bartering_rate"`
	LearningRate      float64  `json:"learning_rate"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Prefix:            "-",
		CurrencySymbol:    "$",
		DisabledRoles:     []string{"@everyone"},
		DeltaTime:         7200,
		BackupTime:        43200,
		Backups:           5,
		DefaultBalance:    0,
		LevelMultiplier:   1.2,
		XPForLevel:        1000,
		MaximumAttackTime: 48,
		AllowAttackIncome: true,
		AttackIncomeCap:   200000,
		MaxPlayerItems:    30,
		DiplomacyRate:     0.025,
		WarlordRate:       0.025,
		IntriqueRate:      0.025,
		StewardshipRate:   0.025,
		TradingRate:       0.025,
		BarteringRate:     0.025,
		LearningRate:      0.25,
	}
}

// WorkInterval returns the minimum time between two accruals.
func (s Settings) WorkInterval() time.Duration {
	return time.Duration(s.DeltaTime) * time.Second
}

// BackupInterval returns the period of the backup scheduler.
func (s Settings) BackupInterval() time.Duration {
	return time.Duration(s.BackupTime) * time.Second
}

// Rate returns the configured bonus rate of a skill.
func (s Settings) Rate(st Stat) float64 {
	switch st {
	case Diplomacy:
		return s.DiplomacyRate
	case Warlord:
		return s.WarlordRate
	case Intrique:
		return s.IntriqueRate
	case Stewardship:
		return s.StewardshipRate
	case Trading:
		return s.TradingRate
	case Bartering:
		return s.BarteringRate
	case Learning:
		return s.LearningRate
	}
	return 0
}

// RoleDisabled reports whether a role name never receives upgrade income.
func (s Settings) RoleDisabled(name string) bool {
	for _, d := range s.DisabledRoles {
		if d == name {
			return true
		}
	}
	return false
}
