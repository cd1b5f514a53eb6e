package random_test

import (
	"math"
	"testing"

	"github.com/jensholdgaard/trinity/internal/random"
)

func TestNewSeeded_Deterministic(t *testing.T) {
	a := random.NewSeeded(42)
	b := random.NewSeeded(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}

func TestInclusive(t *testing.T) {
	src := random.NewSeeded(7)
	seen := map[int64]bool{}
	for i := 0; i < 2000; i++ {
		v := random.Inclusive(src, 3, 6)
		if v < 3 || v > 6 {
			t.Fatalf("Inclusive(3, 6) = %d out of range", v)
		}
		seen[v] = true
	}
	for v := int64(3); v <= 6; v++ {
		if !seen[v] {
			t.Errorf("value %d never drawn", v)
		}
	}

	if got := random.Inclusive(src, 5, 5); got != 5 {
		t.Errorf("Inclusive(5, 5) = %d, want 5", got)
	}
	if got := random.Inclusive(src, 5, 0); got != 5 {
		t.Errorf("Inclusive(5, 0) = %d, want 5", got)
	}
}

func TestInclusive_WideRange(t *testing.T) {
	src := random.NewSeeded(7)
	tests := []struct{ lo, hi int64 }{
		{0, math.MaxInt64},
		{math.MinInt64, math.MaxInt64},
		{-1, math.MaxInt64},
	}
	for _, tt := range tests {
		for i := 0; i < 100; i++ {
			if v := random.Inclusive(src, tt.lo, tt.hi); v < tt.lo || v > tt.hi {
				t.Fatalf("Inclusive(%d, %d) = %d out of range", tt.lo, tt.hi, v)
			}
		}
	}
}

func TestNew(t *testing.T) {
	src, err := random.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if v := src.IntN(10); v < 0 || v >= 10 {
		t.Errorf("IntN(10) = %d", v)
	}
}
