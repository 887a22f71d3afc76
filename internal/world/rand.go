package world

import "math/rand/v2"

// Rand is the random-draw source used by combat, loot, and economy logic.
// Isolating it behind an interface keeps outcomes reproducible in tests.
type Rand interface {
	// Float64 returns a uniform draw from [0.0, 1.0).
	Float64() float64
	// IntN returns a uniform draw from [0, n).
	IntN(n int) int
}

// NewRand returns a seeded PCG-backed source. The same seed always
// produces the same draw sequence.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
