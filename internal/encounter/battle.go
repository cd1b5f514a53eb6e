package encounter

import "github.com/jensholdgaard/trinity/internal/random"

// Outcome is the result of an attack.
type Outcome string

const (
	OutOfRolls Outcome = "out of rolls"
	Won        Outcome = "won"
	Lost       Outcome = "lost"
	Tie        Outcome = "tie"
)

// Refunded reports whether the colonization price is returned for o.
func (o Outcome) Refunded() bool { return o != Won }

// maxRounds is the number of attrition rounds fought after the support rolls.
const maxRounds = 3

// Forces are the declared strengths of both sides of an attack.
type Forces struct {
	Manpower      int64
	EnemyManpower int64
	Support       int64
	EnemySupport  int64
}

// BattleResult is the state of both armies after a battle.
type BattleResult struct {
	Outcome  Outcome
	Attacker int64
	Defender int64
	// Rounds is the number of attrition rounds actually fought.
	Rounds int
}

// ResolveBattle fights a battle. Each side's support first removes up to its
// value from the opponent; then up to three rounds of attrition follow in
// which the attacker strikes first. A defender wiped out in a round still
// strikes back with the strength it had before that round.
func ResolveBattle(src random.Source, f Forces) BattleResult {
	att, def := f.Manpower, f.EnemyManpower

	if f.Support > 0 {
		def -= random.Inclusive(src, 0, f.Support)
	}
	def = max(def, 0)
	if f.EnemySupport > 0 {
		att -= random.Inclusive(src, 0, f.EnemySupport)
	}
	att = max(att, 0)

	rounds := 0
	for range maxRounds {
		if att <= 0 || def <= 0 {
			break
		}
		rounds++
		before := def
		def = max(def-random.Inclusive(src, 0, att), 0)
		if def > 0 {
			att -= random.Inclusive(src, 0, def)
		} else {
			att -= random.Inclusive(src, 0, before)
		}
		att = max(att, 0)
	}

	res := BattleResult{Attacker: att, Defender: def, Rounds: rounds}
	switch {
	case att > 0 && def > 0:
		res.Outcome = OutOfRolls
	case att > 0:
		res.Outcome = Won
	case def > 0:
		res.Outcome = Lost
	default:
		res.Outcome = Tie
	}
	return res
}
