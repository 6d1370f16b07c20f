// Package importresolve implements spec.md §4.M: turning a FlatDoc's
// `imports:` map into loaded, merged VariationSets, one per import name.
// Grounded on the teacher's import_bfs.go / import_processor.go pattern of
// loading each referenced file through the shared cache and merging sibling
// contributions in declared order, generalized from markdown frontmatter
// imports to variation-set imports.
package importresolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/pkg/docparse"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

var resolveLog = obslog.New("importresolve")

// Resolved is one import name's fully merged, loop-weighted variation set.
type Resolved struct {
	Name   string
	Set    *docmodel.VariationSet
	Weight *uint32 // nil means "no declared weight" (§4.E tiebreaks on order)
}

// ReservedPrompt and ReservedNegative are always available without an
// `imports:` declaration (spec.md §4.M); the import resolver never loads
// them and callers must not treat their absence from the result as an error.
const (
	ReservedPrompt   = "prompt"
	ReservedNegative = "negative_prompt"
)

// Resolve loads and merges every import declared in flat.Imports, using
// cache to read each referenced file at most once. The returned map is
// keyed by import name; flat.ImportOrder gives the declared iteration order.
func Resolve(cache *loader.Cache, flat *docmodel.FlatDoc) (map[string]*Resolved, error) {
	out := make(map[string]*Resolved, len(flat.Imports))

	names := flat.ImportOrder
	if len(names) == 0 {
		// No recorded declaration order (e.g. hand-built FlatDoc in tests):
		// fall back to a stable lexical order rather than map iteration.
		names = make([]string, 0, len(flat.Imports))
		for name := range flat.Imports {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		src, ok := flat.Imports[name]
		if !ok {
			continue
		}
		set, err := mergeSources(cache, name, src.Sources)
		if err != nil {
			return nil, err
		}
		resolveLog.Printf("resolved import %q: %d entries from %d source(s)", name, len(set.Variations), len(src.Sources))
		out[name] = &Resolved{Name: name, Set: set, Weight: src.Weight}
	}

	return out, nil
}

// mergeSources loads each source file in declared order and concatenates
// their variations into one ordered VariationSet, rejecting duplicate keys
// across sources (spec.md §4.M: "not silent override").
func mergeSources(cache *loader.Cache, importName string, sources []string) (*docmodel.VariationSet, error) {
	merged := &docmodel.VariationSet{Source: importName}
	seen := make(map[string]string) // key -> source path that first declared it

	for _, path := range sources {
		abs, err := cache.Resolve(path)
		if err != nil {
			return nil, err
		}
		doc, err := cache.Load(path)
		if err != nil {
			return nil, err
		}
		parsed, err := docparse.Parse(doc)
		if err != nil {
			return nil, err
		}
		if parsed.Kind != docmodel.KindVariationSet {
			return nil, docerr.New(docerr.CategoryImportConflict,
				fmt.Sprintf("import %q: %s is not a variation file", importName, abs)).
				WithLocation(abs, "", 0, 0)
		}

		if merged.Type == "" && len(merged.Variations) == 0 {
			merged.Type = parsed.VariationSet.Type
		} else if merged.Type != parsed.VariationSet.Type {
			return nil, docerr.New(docerr.CategoryImportConflict,
				fmt.Sprintf("import %q: cannot mix flat and multi_field sources (%s)", importName, abs)).
				WithLocation(abs, "", 0, 0)
		}

		var conflicts []string
		for _, v := range parsed.VariationSet.Variations {
			if first, dup := seen[v.Key]; dup {
				conflicts = append(conflicts, fmt.Sprintf("%q (also in %s)", v.Key, first))
				continue
			}
			seen[v.Key] = abs
			merged.Variations = append(merged.Variations, v)
		}
		if len(conflicts) > 0 {
			return nil, docerr.New(docerr.CategoryImportConflict,
				fmt.Sprintf("import %q: duplicate key(s) across sources: %s", importName, strings.Join(conflicts, ", "))).
				WithLocation(abs, "", 0, 0).
				WithCandidates(nil)
		}
	}

	return merged, nil
}
