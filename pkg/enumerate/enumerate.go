// Package enumerate implements spec.md §4.E: discovering the loop axes in a
// resolved document's bodies, ordering them, and producing the variant
// index stream — combinatorial (Cartesian product, in axis order) or
// random (sampling without replacement via internal/rngstream, decoupled
// from the per-image seed policy in pkg/seedpolicy). Grounded on the
// teacher's import_topological.go accumulate-and-replay-in-order pattern,
// generalized here to ordering independent axes rather than ancestor
// levels.
package enumerate

import (
	"fmt"
	"sort"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/internal/placeholder"
	"github.com/sdtmpl/sdtmpl/internal/rngstream"
	"github.com/sdtmpl/sdtmpl/pkg/importresolve"
	"github.com/sdtmpl/sdtmpl/pkg/selector"
)

var enumLog = obslog.New("enumerate")

// reservedNames are always available from inheritance injection, never
// backed by an import, and are never loop axes.
var reservedNames = map[string]bool{
	importresolve.ReservedPrompt:   true,
	importresolve.ReservedNegative: true,
}

// Placeholder is one resolved `{Name}` / `{Name[selector]}` occurrence: its
// selected candidate set (length 1 means "fixed", not a loop axis), its
// declared loop weight if any, and the order it was first encountered
// scanning the document's bodies left to right.
type Placeholder struct {
	Key      string // Name plus raw selector text, uniquely identifying this occurrence's scope
	Name     string
	Values   []docmodel.Variation
	Weight   *uint32
	Position int
}

// IsAxis reports whether this placeholder varies (and therefore
// contributes a Cartesian dimension) rather than resolving to one fixed
// value for every variant.
func (p Placeholder) IsAxis() bool { return len(p.Values) > 1 }

// Discover scans bodies in order, resolving every placeholder name against
// imports (via the already-selector-applied candidate set) and returns one
// Placeholder per distinct (name, selector) occurrence, in first-seen
// order. runSeed seeds any `random:N` selectors encountered.
func Discover(imports map[string]*importresolve.Resolved, runSeed int64, bodies ...string) ([]Placeholder, error) {
	var out []Placeholder
	seen := make(map[string]int) // key -> index into out
	pos := 0

	for _, body := range bodies {
		nodes, err := placeholder.Parse(body)
		if err != nil {
			return nil, docerr.New(docerr.CategoryUnresolvedPlaceholder, err.Error())
		}
		for _, n := range nodes {
			if n.Kind != placeholder.KindPlaceholder {
				continue
			}
			name := n.Placeholder.Name
			if reservedNames[name] {
				continue
			}
			key := name + "\x00" + n.Placeholder.Selector
			if _, ok := seen[key]; ok {
				continue
			}

			resolved, ok := imports[name]
			if !ok {
				return nil, docerr.New(docerr.CategoryUnresolvedPlaceholder,
					fmt.Sprintf("placeholder %q has no declared import", name))
			}
			sel, err := selector.Parse(n.Placeholder.Selector)
			if err != nil {
				return nil, err
			}
			values, err := selector.Apply(resolved.Set, sel, runSeed)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, docerr.New(docerr.CategorySelector,
					fmt.Sprintf("placeholder %q: selector %q yields an empty set", name, n.Placeholder.Selector))
			}

			seen[key] = len(out)
			out = append(out, Placeholder{
				Key:      key,
				Name:     name,
				Values:   values,
				Weight:   resolved.Weight,
				Position: pos,
			})
			pos++
		}
	}
	return out, nil
}

// axisRank gives every placeholder an orderable rank: declared weight when
// present, otherwise a value above any real weight so unweighted axes sort
// after weighted ones, with Position breaking ties either way (spec.md
// §4.E (b) and (c)). This is the one place spec.md leaves the interaction
// between "ascending weight" and "declaration order" underspecified for
// axes that mix declared and undeclared weights; treating "no weight" as
// maximal keeps both stated rules literally true without inventing a third.
const unweightedRank = ^uint32(0)

func axisRank(p Placeholder) uint32 {
	if p.Weight != nil {
		return *p.Weight
	}
	return unweightedRank
}

// OrderAxes returns the subset of placeholders that vary, sorted outermost
// (slowest-varying) first per spec.md §4.E.
func OrderAxes(all []Placeholder) []Placeholder {
	axes := make([]Placeholder, 0, len(all))
	for _, p := range all {
		if p.IsAxis() {
			axes = append(axes, p)
		}
	}
	sort.SliceStable(axes, func(i, j int) bool {
		ri, rj := axisRank(axes[i]), axisRank(axes[j])
		if ri != rj {
			return ri < rj
		}
		return axes[i].Position < axes[j].Position
	})
	return axes
}

// Total returns the size of the Cartesian product over axes. Returns an
// error if it would overflow a uint64 (an unrealistic template, but the
// contract must not silently wrap).
func Total(axes []Placeholder) (uint64, error) {
	total := uint64(1)
	for _, a := range axes {
		n := uint64(len(a.Values))
		if n == 0 {
			continue
		}
		next := total * n
		if total != 0 && next/n != total {
			return 0, docerr.New(docerr.CategoryRuntimeInfo, "combinatorial space overflows 64 bits")
		}
		total = next
	}
	return total, nil
}

// Selection is one emitted point in the variant space: the combinatorial
// index (or sampled position, in random mode) and the chosen Variation for
// every axis, keyed by placeholder Key.
type Selection struct {
	Index   int
	Choices map[string]docmodel.Variation
}

// Combinatorial returns, in index order, up to maxImages Selections over
// axes' Cartesian product (axes[0] slowest-varying). maxImages == 0 means
// unbounded (the whole space).
func Combinatorial(axes []Placeholder, maxImages uint32) ([]Selection, error) {
	total, err := Total(axes)
	if err != nil {
		return nil, err
	}
	limit := total
	if maxImages > 0 && uint64(maxImages) < limit {
		limit = uint64(maxImages)
	}

	out := make([]Selection, 0, limit)
	for i := uint64(0); i < limit; i++ {
		out = append(out, Selection{Index: int(i), Choices: decode(axes, i)})
	}
	return out, nil
}

// decode turns a combinatorial index into one Variation choice per axis, a
// standard mixed-radix decode with axes[0] as the most significant digit.
func decode(axes []Placeholder, index uint64) map[string]docmodel.Variation {
	choices := make(map[string]docmodel.Variation, len(axes))
	digits := make([]uint64, len(axes))
	remaining := index
	for k := len(axes) - 1; k >= 0; k-- {
		n := uint64(len(axes[k].Values))
		digits[k] = remaining % n
		remaining /= n
	}
	for k, a := range axes {
		choices[a.Key] = a.Values[digits[k]]
	}
	return choices
}

// Random returns a without-replacement sample of size min(maxImages, total)
// over the same Cartesian index space, ordered by the selection RNG's draw
// order. When maxImages >= total the result is a full permutation, per
// spec.md §4.E. The RNG stream is independent of per-image seed assignment
// (pkg/seedpolicy) and of any `random:N` selector streams (both keyed by
// distinct purpose strings in internal/rngstream).
func Random(axes []Placeholder, maxImages uint32, runSeed int64) ([]Selection, error) {
	total, err := Total(axes)
	if err != nil {
		return nil, err
	}
	limit := total
	if maxImages > 0 && uint64(maxImages) < limit {
		limit = uint64(maxImages)
	}
	if total == 0 {
		return nil, nil
	}

	r := rngstream.New(runSeed, "enumerate")
	perm := rngstream.Permutation(r, int(total))

	out := make([]Selection, 0, limit)
	for i := uint64(0); i < limit; i++ {
		idx := uint64(perm[i])
		out = append(out, Selection{Index: int(i), Choices: decode(axes, idx)})
	}
	enumLog.Printf("random mode sampled %d of %d combinations", limit, total)
	return out, nil
}
