// Package dice provides the core randomness abstraction for the game
// engine: attribute rolls, crit chances, and weighted choices.
package dice

// Source is the randomness provider for all game rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Between returns a random int in [lo, hi] inclusive.
//
// Precondition: lo <= hi; src must be non-nil.
func Between(src Source, lo, hi int) int {
	if lo > hi {
		panic("dice: Between called with lo > hi")
	}
	return lo + src.Intn(hi-lo+1)
}

// Chance returns true with probability pct/100.
//
// Precondition: src must be non-nil. Values of pct <= 0 never succeed;
// values >= 100 always succeed.
func Chance(src Source, pct int) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return src.Intn(100) < pct
}

// WeightedIndex picks an index with probability proportional to its
// weight. Zero-weight entries are never picked.
//
// Precondition: weights must contain at least one positive entry.
func WeightedIndex(src Source, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		panic("dice: WeightedIndex called with no positive weight")
	}

	pick := src.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if pick < w {
			return i
		}
		pick -= w
	}
	// Unreachable: pick < total by construction.
	return len(weights) - 1
}
