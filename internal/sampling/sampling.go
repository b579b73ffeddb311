// Package sampling holds the random draws every engine component shares.
// All functions take the generator explicitly; nothing here touches global
// random state, so two cycles with the same seed draw the same values.
package sampling

import (
	"math/rand/v2"
	"time"
)

// pcgStream separates the two PCG words derived from one seed.
const pcgStream = 0x9e3779b97f4a7c15

// New returns a PCG generator fully determined by seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^pcgStream))
}

// Fork derives an independent generator from rng. Components that consume an
// unpredictable number of draws (the fake value provider) get a fork so they
// cannot shift the draws of everything after them.
func Fork(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}

// IntBetween returns a uniform integer in [lo, hi]. It returns lo when hi <= lo.
func IntBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// Chance reports true with probability p.
func Chance(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	return rng.Float64() < p
}

// Instant returns a uniform instant in [lo, hi] at microsecond resolution, in
// UTC. Callers must ensure lo <= hi; an empty interval yields lo rounded up to
// the next microsecond.
func Instant(rng *rand.Rand, lo, hi time.Time) time.Time {
	loU := ceilMicro(lo)
	hiU := hi.UnixMicro()
	if hiU <= loU {
		return time.UnixMicro(loU).UTC()
	}
	return time.UnixMicro(loU + rng.Int64N(hiU-loU+1)).UTC()
}

// Offset returns a uniform duration in [lo, hi] at microsecond resolution.
func Offset(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	loU, hiU := lo.Microseconds(), hi.Microseconds()
	if hiU <= loU {
		return time.Duration(loU) * time.Microsecond
	}
	return time.Duration(loU+rng.Int64N(hiU-loU+1)) * time.Microsecond
}

// Choose returns k distinct indices drawn uniformly from [0, n), in draw
// order. k is clamped to [0, n].
func Choose(rng *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

func ceilMicro(t time.Time) int64 {
	u := t.UnixMicro()
	if time.UnixMicro(u).Before(t) {
		u++
	}
	return u
}
