// Package engine implements spec.md §6's driver-facing surface: loading a
// prompt file, running it through every resolution stage exactly once, and
// handing the driver a ResolvedRun it can iterate for Variants and snapshot
// into a manifest.Manifest. No package in this module performs HTTP calls
// or writes image files (spec.md Non-goals) — engine stops at producing
// the final prompt/negative text and per-variant parameters.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/pkg/chunkresolve"
	"github.com/sdtmpl/sdtmpl/pkg/docparse"
	"github.com/sdtmpl/sdtmpl/pkg/enumerate"
	"github.com/sdtmpl/sdtmpl/pkg/importresolve"
	"github.com/sdtmpl/sdtmpl/pkg/inherit"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
	"github.com/sdtmpl/sdtmpl/pkg/manifest"
	"github.com/sdtmpl/sdtmpl/pkg/seedpolicy"
	"github.com/sdtmpl/sdtmpl/pkg/substitute"
	"github.com/sdtmpl/sdtmpl/pkg/validate"
)

var engineLog = obslog.New("engine")

// Overrides carries the driver's configuration for one LoadAndResolve
// call, kept as typed fields rather than read from the environment so the
// engine stays embeddable in any driver (spec.md §6, SPEC_FULL.md
// "Configuration").
type Overrides struct {
	// BaseDir roots relative `implements`/`imports`/chunk paths. Defaults
	// to the prompt file's own directory when empty.
	BaseDir string
	// MaxDepth bounds the implements chain; 0 uses inherit.DefaultMaxDepth.
	MaxDepth int
	// MaxImages caps enumeration, 0 means unbounded (the full space,
	// subject to the document's own generation.max_images).
	MaxImages uint32
}

// ResolvedRun is the output of LoadAndResolve: everything needed to mint
// Variants and, later, a manifest.Snapshot, with every YAML file involved
// already read and validated exactly once.
type ResolvedRun struct {
	flat    *docmodel.FlatDoc
	imports map[string]*importresolve.Resolved
	// all is every placeholder Discover found, fixed and varying alike.
	// axes is the subset of all that varies (len(Values) > 1), ordered for
	// enumeration. A fixed placeholder (len(Values) == 1) still needs its
	// one value bound into every variant and recorded in the manifest, so
	// Iter and Snapshot both range over all, not just axes.
	all        []enumerate.Placeholder
	axes       []enumerate.Placeholder
	positive   string // resolved body, placeholders still visible
	negative   string
	selections []enumerate.Selection
}

// LoadAndResolve reads path and walks it through every stage of the
// pipeline: load, parse, flatten inheritance, resolve imports, expand
// chunks, validate, and discover/order loop axes. It stops short of
// picking a variant's concrete seed or substituting text — that happens
// per-Variant in Iter, so callers that only want TotalCombinations pay
// for enumeration once, not substitution.
func LoadAndResolve(path string, overrides Overrides) (*ResolvedRun, error) {
	baseDir := overrides.BaseDir
	loadPath := path
	if baseDir == "" {
		// All relative paths in the chain (implements/imports/chunks) share
		// one cache baseDir, so default it to the prompt file's own
		// directory and load the prompt file by its base name alone —
		// otherwise it would be joined onto baseDir twice.
		baseDir = filepath.Dir(path)
		loadPath = filepath.Base(path)
	}
	cache := loader.NewCache(baseDir)

	doc, err := cache.Load(loadPath)
	if err != nil {
		return nil, err
	}
	parsed, err := docparse.Parse(doc)
	if err != nil {
		return nil, err
	}
	if parsed.Kind != docmodel.KindPrompt {
		return nil, docerr.New(docerr.CategoryParse, fmt.Sprintf("%s is not a *.prompt.yaml document", path)).WithLocation(path, "", 0, 0)
	}

	// Structural JSON Schema pass over the top-level document, after
	// docparse's own strict-key checks and ahead of validate.Static, per
	// spec.md §4.V's static phase.
	var raw map[string]any
	if err := yaml.Unmarshal(doc.Content, &raw); err != nil {
		return nil, docerr.New(docerr.CategoryParse, err.Error()).WithLocation(path, "", 0, 0)
	}
	if err := validate.Schema(parsed.Kind, raw); err != nil {
		return nil, err
	}

	resolver := inherit.NewResolver(cache, overrides.MaxDepth)
	flat, err := resolver.Resolve(parsed.Prompt)
	if err != nil {
		return nil, err
	}

	imports, err := importresolve.Resolve(cache, flat)
	if err != nil {
		return nil, err
	}

	chunkResolver := chunkresolve.NewResolver(cache, flat.Chunks)
	positive, err := chunkResolver.Expand(flat.Prompt)
	if err != nil {
		return nil, err
	}
	negative, err := chunkResolver.Expand(flat.Negative)
	if err != nil {
		return nil, err
	}

	if err := validate.Static(flat, imports, positive, negative); err != nil {
		return nil, err
	}

	all, err := enumerate.Discover(imports, flat.Generation.Seed, positive, negative)
	if err != nil {
		return nil, err
	}
	axes := enumerate.OrderAxes(all)

	var selections []enumerate.Selection
	switch flat.Generation.Mode {
	case docmodel.ModeRandom:
		selections, err = enumerate.Random(axes, maxImages(flat, overrides), flat.Generation.Seed)
	default:
		selections, err = enumerate.Combinatorial(axes, maxImages(flat, overrides))
	}
	if err != nil {
		return nil, err
	}

	engineLog.Printf("resolved %s: %d axes, %d variant(s)", path, len(axes), len(selections))

	return &ResolvedRun{
		flat:       flat,
		imports:    imports,
		all:        all,
		axes:       axes,
		positive:   positive,
		negative:   negative,
		selections: selections,
	}, nil
}

func maxImages(flat *docmodel.FlatDoc, overrides Overrides) uint32 {
	if overrides.MaxImages > 0 {
		return overrides.MaxImages
	}
	return flat.Generation.MaxImages
}

// TotalCombinations reports the full Cartesian product size, regardless of
// any MaxImages cap applied to the emitted variant stream.
func (r *ResolvedRun) TotalCombinations() (uint64, error) {
	return enumerate.Total(r.axes)
}

// Len reports how many Variants Iter will yield.
func (r *ResolvedRun) Len() int {
	return len(r.selections)
}

// Axes returns the ordered loop axes discovered for this run, for drivers
// that want to render a summary before iterating variants.
func (r *ResolvedRun) Axes() []enumerate.Placeholder {
	return r.axes
}

// Variant is one fully substituted, ready-to-submit generation request.
type Variant struct {
	Index             int
	SeedHint          int64 // RandomSentinel when SeedMode is random: driver assigns its own seed
	Positive          string
	Negative          string
	AppliedVariations map[string]string // placeholder name -> selected key, fixed and varying alike
	APIParams         docmodel.Parameters
}

// Iter returns every Variant in selection order, substituting and
// normalizing each one and running the per-variant dynamic validation
// pass (spec.md §4.V) before it is returned. An error aborts the
// remaining iteration; the driver sees variants already produced.
func (r *ResolvedRun) Iter() ([]Variant, error) {
	out := make([]Variant, 0, len(r.selections))
	for _, sel := range r.selections {
		bindings := make(map[string]string, len(r.all))
		applied := make(map[string]string, len(r.all))

		// Fixed placeholders (IsAxis() == false) resolve to their one value
		// on every variant; they never appear in sel.Choices because
		// Combinatorial/Random only enumerate over the varying axes.
		for _, p := range r.all {
			if p.IsAxis() {
				continue
			}
			bindings[p.Key] = p.Values[0].Text
			applied[p.Name] = p.Values[0].Key
		}
		for _, axis := range r.axes {
			choice, ok := sel.Choices[axis.Key]
			if !ok {
				continue
			}
			bindings[axis.Key] = choice.Text
			applied[axis.Name] = choice.Key
		}

		positive, err := substitute.Substitute(r.positive, bindings)
		if err != nil {
			return out, err
		}
		negative, err := substitute.Substitute(r.negative, bindings)
		if err != nil {
			return out, err
		}
		if err := validate.Dynamic(positive, negative); err != nil {
			return out, err
		}

		out = append(out, Variant{
			Index:             sel.Index,
			SeedHint:          seedpolicy.SeedFor(sel.Index, r.flat.Generation.Seed, r.flat.Generation.SeedMode),
			Positive:          positive,
			Negative:          negative,
			AppliedVariations: applied,
			APIParams:         r.flat.Parameters,
		})
	}
	return out, nil
}

// Snapshot builds the run-level manifest.Snapshot, the same inputs a
// driver needs before it starts recording per-image results. now is the
// ISO-8601 run timestamp and runtimeInfo is opaque driver metadata
// (host, SD model checkpoint, client version): the engine never
// generates either itself (spec.md §5: no hidden non-determinism).
func (r *ResolvedRun) Snapshot(now string, runtimeInfo any) (manifest.Snapshot, error) {
	total, err := r.TotalCombinations()
	if err != nil {
		return manifest.Snapshot{}, err
	}
	return manifest.BuildSnapshot(r.flat, r.positive, r.negative, r.all, total, len(r.selections), now, runtimeInfo), nil
}
