// Package selector implements spec.md §4.S: parsing and applying the
// bracketed selector syntax that narrows a VariationSet before enumeration.
// Grounded on the teacher's schema_validation.go pattern of a strict
// allow-listed syntax with precise, candidate-bearing errors on the reject
// path.
package selector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/rngstream"
	"github.com/sdtmpl/sdtmpl/pkg/sliceutil"
)

// Kind discriminates the six selector forms spec.md §4.S defines.
type Kind int

const (
	KindAll Kind = iota
	KindFirstN
	KindRandomN
	KindIndices
	KindIndexRange
	KindKeys
)

// Selector is a parsed, not-yet-applied selector expression.
type Selector struct {
	Kind    Kind
	N       int      // KindFirstN, KindRandomN
	Indices []int    // KindIndices, KindIndexRange (already expanded low..high)
	Keys    []string // KindKeys
	raw     string
}

// Parse parses the text inside the square brackets (without the brackets
// themselves). An empty string is KindAll.
func Parse(src string) (Selector, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return Selector{Kind: KindAll, raw: src}, nil
	}

	if strings.HasPrefix(s, "random:") {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "random:"))
		if err != nil || n < 1 {
			return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: random:N requires a positive integer", src))
		}
		return Selector{Kind: KindRandomN, N: n, raw: src}, nil
	}

	if strings.HasPrefix(s, "keys:") {
		list := strings.TrimPrefix(s, "keys:")
		keys := splitNonEmpty(list, ',')
		if len(keys) == 0 {
			return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: keys: requires at least one key", src))
		}
		return Selector{Kind: KindKeys, Keys: keys, raw: src}, nil
	}

	if strings.HasPrefix(s, "#") {
		body := strings.TrimPrefix(s, "#")
		if strings.Contains(body, "-") && !strings.Contains(body, ",") {
			parts := strings.SplitN(body, "-", 2)
			if len(parts) == 2 {
				lo, errLo := strconv.Atoi(strings.TrimSpace(parts[0]))
				hi, errHi := strconv.Atoi(strings.TrimSpace(parts[1]))
				if errLo == nil && errHi == nil {
					if lo > hi {
						return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: range start must be <= end", src))
					}
					idx := make([]int, 0, hi-lo+1)
					for i := lo; i <= hi; i++ {
						idx = append(idx, i)
					}
					return Selector{Kind: KindIndexRange, Indices: idx, raw: src}, nil
				}
			}
		}
		fields := splitNonEmpty(body, ',')
		if len(fields) == 0 {
			return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: #i,j,k requires at least one index", src))
		}
		idx := make([]int, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: %q is not an integer index", src, f))
			}
			idx = append(idx, n)
		}
		return Selector{Kind: KindIndices, Indices: idx, raw: src}, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("invalid selector %q: N must be >= 1", src))
		}
		return Selector{Kind: KindFirstN, N: n, raw: src}, nil
	}

	return Selector{}, docerr.New(docerr.CategorySelector, fmt.Sprintf("unrecognized selector %q", src))
}

// Apply narrows set according to sel, returning the selected subset in the
// order spec.md §4.S prescribes for that kind. runSeed seeds the sampling
// RNG for KindRandomN so the same run reproduces the same sample.
func Apply(set *docmodel.VariationSet, sel Selector, runSeed int64) ([]docmodel.Variation, error) {
	all := set.Variations

	switch sel.Kind {
	case KindAll:
		return append([]docmodel.Variation{}, all...), nil

	case KindFirstN:
		n := sel.N
		if n > len(all) {
			n = len(all)
		}
		return append([]docmodel.Variation{}, all[:n]...), nil

	case KindRandomN:
		n := sel.N
		if n > len(all) {
			n = len(all)
		}
		r := rngstream.New(runSeed, "selector:"+set.Source)
		perm := rngstream.Permutation(r, len(all))
		out := make([]docmodel.Variation, n)
		for i := 0; i < n; i++ {
			out[i] = all[perm[i]]
		}
		return out, nil

	case KindIndices, KindIndexRange:
		out := make([]docmodel.Variation, 0, len(sel.Indices))
		for _, i := range sel.Indices {
			if i < 0 || i >= len(all) {
				return nil, docerr.New(docerr.CategorySelector,
					fmt.Sprintf("selector %q: index %d out of range [0,%d)", sel.raw, i, len(all))).
					WithLocation(set.Source, "", 0, 0)
			}
			out = append(out, all[i])
		}
		return out, nil

	case KindKeys:
		out := make([]docmodel.Variation, 0, len(sel.Keys))
		var missing []string
		for _, k := range sel.Keys {
			v, ok := set.Lookup(k)
			if !ok {
				missing = append(missing, k)
				continue
			}
			out = append(out, v)
		}
		if len(missing) > 0 {
			return nil, docerr.New(docerr.CategorySelector,
				fmt.Sprintf("selector %q: missing key(s): %s", sel.raw, strings.Join(missing, ", "))).
				WithLocation(set.Source, "", 0, 0).
				WithCandidates(nearestKeys(missing, set.Keys()))
		}
		return out, nil
	}

	return nil, docerr.New(docerr.CategorySelector, fmt.Sprintf("unhandled selector kind for %q", sel.raw))
}

func splitNonEmpty(s string, sep byte) []string {
	parts := strings.Split(s, string(sep))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nearestKeys(missing, candidates []string) []string {
	var out []string
	for _, m := range missing {
		out = append(out, docerr.Suggest(m, candidates, 3)...)
	}
	sort.Strings(out)
	return sliceutil.Dedup(out)
}
