// Package rngstream provides the single deterministic PRNG stream used for
// selection sampling: `random:N` selectors (pkg/selector) and `mode=random`
// combination sampling (pkg/enumerate). spec.md §9 requires this stream
// stay isolated from the per-image seed-policy seed (pkg/seedpolicy), which
// is a pure arithmetic function of the run seed and variant index, not a
// PRNG draw — so there is exactly one stream to isolate, not two to
// coordinate.
package rngstream

import "math/rand/v2"

// New returns a PRNG seeded deterministically from runSeed, salted by a
// purpose tag so selector sampling and enumeration sampling derive
// independent-looking but equally reproducible sequences from one run seed.
func New(runSeed int64, purpose string) *rand.Rand {
	seed1, seed2 := deriveSeeds(runSeed, purpose)
	return rand.New(rand.NewPCG(seed1, seed2))
}

// deriveSeeds folds runSeed and purpose into the two 64-bit seed words
// math/rand/v2's PCG source needs, using the FNV-1a mixing function so
// distinct purposes never collide even for small runSeed values.
func deriveSeeds(runSeed int64, purpose string) (uint64, uint64) {
	const (
		offset64 = uint64(14695981039346656037)
		prime64  = uint64(1099511628211)
	)
	h := offset64
	h ^= uint64(runSeed)
	h *= prime64
	for i := 0; i < len(purpose); i++ {
		h ^= uint64(purpose[i])
		h *= prime64
	}
	seed1 := h
	h ^= 0xff
	h *= prime64
	seed2 := h
	return seed1, seed2
}

// Permutation returns a uniformly random permutation of [0, n) drawn from r.
func Permutation(r *rand.Rand, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}
