package effect

import (
	"math"
	"math/rand"
)

// Logistic is the fixed numeric function `logistic(x, midpoint,
// steepness)` used by the mutation DSL and by the simulation engine's
// shot model (spec.md §4.4): 1 / (1 + e^(-steepness*(x-midpoint))).
func Logistic(x, midpoint, steepness float64) float64 {
	return 1.0 / (1.0 + math.Exp(-steepness*(x-midpoint)))
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// WeightedChoice draws an index from weights proportional to their
// magnitude, using rng. A negative weight counts as zero, and a
// zero-weight option is never chosen. If no weight is positive, or rng
// is nil, it returns 0. It does not apply spec.md §4.4 step 4's "each
// weight clamped to >= 1"; the simulation engine's callers clamp their
// weights to >= 1 before calling.
func WeightedChoice(rng *rand.Rand, weights []float64) int {
	total := 0.0
	clamped := make([]float64, len(weights))
	for i, w := range weights {
		if w < 0 {
			w = 0
		}
		clamped[i] = w
		total += w
	}
	if total <= 0 || rng == nil {
		return 0
	}
	target := rng.Float64() * total
	running := 0.0
	for i, w := range clamped {
		running += w
		if target < running {
			return i
		}
	}
	return len(clamped) - 1
}
