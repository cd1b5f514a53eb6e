// Package random provides the seeded pseudo-random source used by the game
// engine for work jitter, loot draws and battle rolls.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// Source is the subset of *rand.Rand the engine draws from.
type Source interface {
	// IntN returns a uniform integer in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// New returns a Source safe for concurrent use, seeded from crypto/rand.
func New() (Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeeded(seed), nil
}

// NewSeeded returns a deterministic Source safe for concurrent use.
func NewSeeded(seed uint64) Source {
	return &locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Inclusive returns a uniform integer in [lo, hi]. When hi < lo it returns lo.
// Ranges wider than math.MaxInt are narrowed to [lo, lo+math.MaxInt-1].
func Inclusive(src Source, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	width := uint64(hi) - uint64(lo)
	if width >= math.MaxInt {
		return lo + int64(src.IntN(math.MaxInt))
	}
	return lo + int64(src.IntN(int(width)+1))
}
