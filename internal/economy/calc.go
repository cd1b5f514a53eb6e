// Package economy implements income accrual, upgrade purchases, leveling and
// skill allocation on top of the state document.
package economy

import (
	"math"
	"math/bits"
	"sort"
	"time"

	"github.com/jensholdgaard/trinity/internal/game"
	"github.com/jensholdgaard/trinity/internal/random"
)

// maxLevelUps bounds a single level-up check. A threshold floor of 1 means
// any finite xp converges well before this.
const maxLevelUps = 1 << 20

// Income is the breakdown of a player's income per work interval.
type Income struct {
	// Base is the sum of the non-zero income buckets of held roles.
	Base int64
	// Multiplier is the product of equipped items' income percent / 100.
	Multiplier float64
	// Boost is the sum of equipped items' flat income.
	Boost int64
	// Stewardship is the skill bonus, rounded to 5 decimals.
	Stewardship float64
	// Total is the income credited for one full interval.
	Total float64
}

// ComputeIncome returns the income a player holding roles would earn for one
// full interval.
func ComputeIncome(doc *game.Document, p *game.Player, roles []game.Role) Income {
	var in Income
	seen := make(map[game.ID]bool, len(roles))
	for _, r := range roles {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if v := doc.Income[r.ID]; v != 0 {
			in.Base += v
		}
	}

	in.Multiplier = 1
	for _, name := range game.SortedKeys(p.Equipped) {
		it := p.Equipped[name]
		in.Multiplier *= it.IncomePercent / 100
		in.Boost += it.Income
	}
	in.Stewardship = round5(float64(p.Stat(game.Stewardship)) * float64(in.Base) * doc.StewardshipRate)
	in.Total = float64(in.Base)*in.Multiplier + float64(in.Boost) + in.Stewardship
	return in
}

// Jitter draws the work multiplier: an integer percent uniform in
// [100-r*100, 100+r*100] divided by 100, or 1 when r is zero.
func Jitter(src random.Source, r float64) float64 {
	if r == 0 {
		return 1
	}
	spread := int64(math.Round(math.Abs(r) * 100))
	return float64(random.Inclusive(src, 100-spread, 100+spread)) / 100
}

// Accrue returns the currency earned for income since last. A zero last
// credits one full interval.
func Accrue(income float64, last game.UnixTime, now time.Time, interval time.Duration, jitter float64) int64 {
	if last.IsZero() {
		return int64(income)
	}
	elapsed := now.Sub(last.Time()).Seconds() / interval.Seconds()
	return int64(income * elapsed * jitter)
}

// NextWork returns the earliest instant the player may work again.
func NextWork(last game.UnixTime, interval time.Duration) time.Time {
	return last.Time().Add(interval)
}

// Bonus returns the fractional bonus of points invested at rate.
func Bonus(points int, rate float64) float64 {
	return float64(points) * rate
}

// UpgradeDiscount sums the discount percent of equipped items targeting
// upgrade (clamped to 100), converts it to a fraction, adds the bartering
// bonus and clamps the result to [0,1].
func UpgradeDiscount(p *game.Player, upgrade string, barteringRate float64) float64 {
	var pct float64
	for _, it := range p.Equipped {
		if it.Discount != "" && it.Discount == upgrade {
			pct += it.DiscountPercent
		}
	}
	pct = clamp(pct, 0, 100)
	d := round5(pct*0.01 + Bonus(p.Stat(game.Bartering), barteringRate))
	return clamp(d, 0, 1)
}

// Cost returns unit * qty discounted by d, rounded to the nearest integer.
func Cost(unit int64, qty int, d float64) int64 {
	c := math.Round(float64(unit) * float64(qty) * (1 - clamp(d, 0, 1)))
	switch {
	case c < 0 || math.IsNaN(c):
		return 0
	case c >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(c)
}

// Mul returns v*n and whether the product of the non-negative operands fits
// in an int64.
func Mul(v int64, n int) (int64, bool) {
	if v < 0 || n < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(v), uint64(n))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// Add returns a+b and whether the sum fits in an int64.
func Add(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

// Threshold returns the xp needed to leave level.
func Threshold(level int, base, multiplier float64) float64 {
	t := base
	for range level {
		t *= multiplier
	}
	t = math.Trunc(t)
	if t < 1 || math.IsNaN(t) {
		return 1
	}
	return t
}

// LevelUp converts accumulated xp into levels and skill points until xp is
// below the next threshold. It returns the number of levels gained.
func LevelUp(p *game.Player, s game.Settings) int {
	gained := 0
	for gained < maxLevelUps {
		t := Threshold(p.Level, s.XPForLevel, s.LevelMultiplier)
		if p.XP < t {
			break
		}
		p.XP -= t
		p.Level++
		p.Skillpoints++
		gained++
	}
	return gained
}

// Progress returns the percent of the way from level to level+1.
func Progress(p *game.Player, s game.Settings) int {
	if p.XP <= 0 {
		return 0
	}
	return int(p.XP / Threshold(p.Level, s.XPForLevel, s.LevelMultiplier) * 100)
}

// EligibleRoles returns the roles that may receive upgrade income: held,
// not disabled by name, and with a non-zero income bucket.
func EligibleRoles(doc *game.Document, roles []game.Role) []game.Role {
	var out []game.Role
	seen := make(map[game.ID]bool, len(roles))
	for _, r := range roles {
		if seen[r.ID] || doc.RoleDisabled(r.Name) {
			continue
		}
		seen[r.ID] = true
		if v, ok := doc.Income[r.ID]; ok && v != 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PopulationIncome estimates the income of a province from its population.
func PopulationIncome(population int64) int64 {
	return int64(float64(population) * 0.01 * 0.4 / 6)
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
