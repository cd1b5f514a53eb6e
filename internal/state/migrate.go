package state

import "github.com/jensholdgaard/trinity/internal/game"

// migration upgrades a document from version-1 to version.
type migration struct {
	version int
	apply   func(doc *game.Document)
}

var migrations = []migration{
	// Snapshots written before versioning: only back-filling is needed.
	{version: 1, apply: func(*game.Document) {}},
	// The attack income ceiling was hardcoded in older builds.
	{version: 2, apply: func(doc *game.Document) {
		if doc.AttackIncomeCap <= 0 {
			doc.AttackIncomeCap = game.DefaultSettings().AttackIncomeCap
		}
	}},
}

// migrate brings doc up to game.SchemaVersion and back-fills missing fields.
// It reports whether the document changed.
func migrate(doc *game.Document) bool {
	changed := false
	for _, m := range migrations {
		if doc.Version >= m.version {
			continue
		}
		m.apply(doc)
		doc.Version = m.version
		changed = true
	}
	if doc.Backfill() {
		changed = true
	}
	return changed
}
