package validate

import (
	"fmt"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/placeholder"
	"github.com/sdtmpl/sdtmpl/pkg/enumerate"
	"github.com/sdtmpl/sdtmpl/pkg/importresolve"
	"github.com/sdtmpl/sdtmpl/pkg/selector"
	"github.com/sdtmpl/sdtmpl/pkg/substitute"
)

var allowedModes = map[docmodel.GenerationMode]bool{
	docmodel.ModeCombinatorial: true,
	docmodel.ModeRandom:        true,
}

var allowedSeedModes = map[docmodel.SeedMode]bool{
	docmodel.SeedModeFixed:       true,
	docmodel.SeedModeProgressive: true,
	docmodel.SeedModeRandom:      true,
}

// Static runs spec.md §4.V's pre-enumeration checks over a flattened,
// chunk-expanded document: every placeholder resolves to a declared
// import, every selector parses and is in-bounds, multi-source imports
// have already been checked disjoint by pkg/importresolve, and
// generation settings are in the allowed enums.
func Static(flat *docmodel.FlatDoc, imports map[string]*importresolve.Resolved, positiveBody, negativeBody string) error {
	if !allowedModes[flat.Generation.Mode] {
		return docerr.New(docerr.CategorySchema, fmt.Sprintf("generation.mode %q is not one of combinatorial, random", flat.Generation.Mode))
	}
	if !allowedSeedModes[flat.Generation.SeedMode] {
		return docerr.New(docerr.CategorySchema, fmt.Sprintf("generation.seed_mode %q is not one of fixed, progressive, random", flat.Generation.SeedMode))
	}

	for _, body := range []string{positiveBody, negativeBody} {
		if body == "" {
			continue
		}
		nodes, err := placeholder.Parse(body)
		if err != nil {
			return docerr.New(docerr.CategoryUnresolvedPlaceholder, err.Error())
		}
		for _, n := range nodes {
			if n.Kind != placeholder.KindPlaceholder {
				continue
			}
			name := n.Placeholder.Name
			if name == importresolve.ReservedPrompt || name == importresolve.ReservedNegative {
				continue
			}
			resolved, ok := imports[name]
			if !ok {
				return docerr.New(docerr.CategoryUnresolvedPlaceholder,
					fmt.Sprintf("{%s} has no declared import", name)).
					WithCandidates(docerr.Suggest(name, importNames(imports), 3))
			}
			sel, err := selector.Parse(n.Placeholder.Selector)
			if err != nil {
				return err
			}
			if _, err := selector.Apply(resolved.Set, sel, flat.Generation.Seed); err != nil {
				return err
			}
		}
	}

	return nil
}

func importNames(imports map[string]*importresolve.Resolved) []string {
	names := make([]string, 0, len(imports))
	for name := range imports {
		names = append(names, name)
	}
	return names
}

// Dynamic runs spec.md §4.V's cheap per-variant checks: the substituted
// body must be non-empty after normalization (an empty body means every
// axis resolved to blank text, which is never a useful image request).
func Dynamic(positive, negative string) error {
	if substitute.Normalize(positive) == "" {
		return docerr.New(docerr.CategoryUnresolvedPlaceholder, "resolved prompt is empty after normalization")
	}
	_ = negative // an empty negative prompt is valid; nothing to check
	return nil
}

// Placeholders exposes enumerate.Discover to static preflight callers that
// want the discovered placeholders without running enumeration. Discover's
// result and its first error are returned unchanged, with their original
// categories.
func Placeholders(imports map[string]*importresolve.Resolved, runSeed int64, bodies ...string) ([]enumerate.Placeholder, error) {
	return enumerate.Discover(imports, runSeed, bodies...)
}
