// Package seedpolicy implements spec.md §4.K: assigning the per-image seed
// hint for each variant. Pure arithmetic, independent of the selection RNG
// used by pkg/enumerate's random mode and pkg/selector's random:N.
package seedpolicy

import "github.com/sdtmpl/sdtmpl/internal/docmodel"

// RandomSentinel is the seed hint for SeedModeRandom: "server picks", per
// spec.md §4.K. The server's chosen seed is recorded later, in the
// manifest, once the generation response reports it.
const RandomSentinel int64 = -1

// SeedFor returns the seed hint for variantIndex (0-based) under policy.
func SeedFor(variantIndex int, base int64, mode docmodel.SeedMode) int64 {
	switch mode {
	case docmodel.SeedModeProgressive:
		return base + int64(variantIndex)
	case docmodel.SeedModeRandom:
		return RandomSentinel
	default: // SeedModeFixed, and any unrecognized value defaults to fixed
		return base
	}
}
