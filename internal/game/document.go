package game

// SchemaVersion is the document layout written by this build.
const SchemaVersion = 2

// Document is the whole persisted game state.
type Document struct {
	Version    int                `json:"schema_version"`
	Players    map[ID]*Player     `json:"players"`
	Income     map[ID]int64       `json:"income"`
	Upgrades   map[string]Upgrade `json:"upgrade"`
	MaxUpgrade map[string]*int    `json:"maxupgrade"`
	Missions   map[string]Mission `json:"missions"`
	LootTable  map[string]Item    `json:"loot-table"`
	Settings
}

// NewDocument returns an empty document with default settings.
func NewDocument() *Document {
	d := &Document{Version: SchemaVersion, Settings: DefaultSettings()}
	d.Backfill()
	return d
}

// Backfill installs empty maps and per-player defaults that older snapshots
// may lack. It reports whether anything changed.
func (d *Document) Backfill() bool {
	changed := false
	if d.Players == nil {
		d.Players = make(map[ID]*Player)
		changed = true
	}
	if d.Income == nil {
		d.Income = make(map[ID]int64)
		changed = true
	}
	if d.Upgrades == nil {
		d.Upgrades = make(map[string]Upgrade)
		changed = true
	}
	if d.MaxUpgrade == nil {
		d.MaxUpgrade = make(map[string]*int)
		changed = true
	}
	if d.Missions == nil {
		d.Missions = make(map[string]Mission)
		changed = true
	}
	if d.LootTable == nil {
		d.LootTable = make(map[string]Item)
		changed = true
	}
	for id, p := range d.Players {
		if p == nil {
			d.Players[id] = NewPlayer(d.DefaultBalance)
			changed = true
			continue
		}
		if p.Backfill() {
			changed = true
		}
		for name := range d.Upgrades {
			if _, ok := p.Upgrades[name]; !ok {
				p.Upgrades[name] = 0
				changed = true
			}
			if _, ok := p.UpgradeCaps[name]; !ok {
				p.UpgradeCaps[name] = copyCap(d.MaxUpgrade[name])
				changed = true
			}
		}
	}
	return changed
}

// Player returns the record for id.
func (d *Document) Player(id ID) (*Player, error) {
	p, ok := d.Players[id]
	if !ok || p == nil {
		return nil, NotFound(ErrPlayerNotFound, "player %s", id)
	}
	return p, nil
}

// EnsurePlayer returns the record for id, creating it with the default
// balance and the catalog keys when absent. created reports a new record.
func (d *Document) EnsurePlayer(id ID) (p *Player, created bool) {
	if p, ok := d.Players[id]; ok && p != nil {
		if p.Backfill() {
			d.fanOut(p)
		}
		return p, false
	}
	p = NewPlayer(d.DefaultBalance)
	d.fanOut(p)
	d.Players[id] = p
	return p, true
}

func (d *Document) fanOut(p *Player) {
	for name := range d.Upgrades {
		if _, ok := p.Upgrades[name]; !ok {
			p.Upgrades[name] = 0
		}
		if _, ok := p.UpgradeCaps[name]; !ok {
			p.UpgradeCaps[name] = copyCap(d.MaxUpgrade[name])
		}
	}
}

func copyCap(c *int) *int {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

// Cap returns a pointer to a copy of v, or nil when v < 0.
func Cap(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}
