// Package inherit implements spec.md §4.I: walking a Prompt's `implements`
// chain of Templates to a flattened, immutable FlatDoc. Merge order is
// root-first (spec.md §4.I): the resolver accumulates the chain from leaf to
// root, then replays it root-to-leaf, applying each level's overrides onto
// the accumulator. Grounded on the teacher's import_topological.go
// (accumulate-then-replay-in-order) and import_bfs.go's accumulator
// pattern, generalized from merging sibling imports to merging an
// ancestor chain.
package inherit

import (
	"fmt"
	"strings"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/pkg/docparse"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
	"github.com/sdtmpl/sdtmpl/pkg/sliceutil"
)

var inheritLog = obslog.New("inherit")

// DefaultMaxDepth bounds the implements chain. spec.md §3 requires handling
// depth >= 8; this is generous headroom above that floor.
const DefaultMaxDepth = 64

// Resolver walks implements chains using a shared loader.Cache so that each
// template file is read and parsed at most once per run.
type Resolver struct {
	cache    *loader.Cache
	maxDepth int
}

// NewResolver returns a Resolver bounded to maxDepth levels of implements.
// A maxDepth <= 0 uses DefaultMaxDepth.
func NewResolver(cache *loader.Cache, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{cache: cache, maxDepth: maxDepth}
}

// chainLevel is one accumulated level, in root-to-leaf replay order.
type chainLevel struct {
	path        string
	parameters  docmodel.Parameters
	imports     map[string]docmodel.ImportSource
	importOrder []string
	chunks      map[string]*docmodel.Chunk
	prompt      string
	hasPrompt   bool
	negative    string
	hasNeg      bool
	generation  *docmodel.Generation
	output      *docmodel.Output
}

// Resolve flattens leaf's implements chain into a FlatDoc. Cycle detection
// across the chain is delegated to the shared cache's BeginLoad/EndLoad
// "currently loading" set (spec.md §4.L) rather than a resolver-local chain
// slice, so an implements cycle is caught the same way a cycle reached via
// `imports`/chunk `implements` would be: by the file genuinely still being
// in progress when it is reached again.
func (r *Resolver) Resolve(leaf *docmodel.Prompt) (*docmodel.FlatDoc, error) {
	childToRoot := []chainLevel{leafLevel(leaf)}

	if err := r.cache.BeginLoad(leaf.Source, nil); err != nil {
		return nil, err
	}
	inProgress := []string{leaf.Source}
	defer func() {
		for _, p := range inProgress {
			r.cache.EndLoad(p)
		}
	}()

	current := leaf.Implements
	for current != "" {
		if len(childToRoot) >= r.maxDepth {
			return nil, docerr.New(docerr.CategoryCycle,
				fmt.Sprintf("implements chain exceeds max depth %d", r.maxDepth)).WithLocation(leaf.Source, "$.implements", 0, 0)
		}

		abs, err := r.cache.Resolve(current)
		if err != nil {
			return nil, err
		}
		if err := r.cache.BeginLoad(abs, inProgress); err != nil {
			if derr, ok := err.(*docerr.Error); ok {
				return nil, derr.WithLocation(leaf.Source, "$.implements", 0, 0)
			}
			return nil, err
		}
		inProgress = append(inProgress, abs)

		doc, err := r.cache.Load(current)
		if err != nil {
			return nil, err
		}
		parsed, err := docparse.Parse(doc)
		if err != nil {
			return nil, err
		}
		if parsed.Kind != docmodel.KindTemplate {
			return nil, docerr.New(docerr.CategoryParse,
				fmt.Sprintf("%s: implements must reference a *.template.yaml document", current)).WithLocation(leaf.Source, "$.implements", 0, 0)
		}

		inheritLog.Printf("walked implements: %s -> %s", inProgress[len(inProgress)-2], abs)
		childToRoot = append(childToRoot, templateLevel(parsed.Template))
		current = parsed.Template.Implements
	}

	// childToRoot is ordered leaf..root; replay root-first.
	acc := chainLevel{parameters: docmodel.Parameters{}}
	for i := len(childToRoot) - 1; i >= 0; i-- {
		acc = mergeLevel(acc, childToRoot[i])
	}

	if strings.Contains(acc.prompt, "{prompt}") {
		// No further level will ever substitute into the leaf's own
		// {prompt} marker; an unresolved one here is the leaf's own error
		// surface, reported later by the substitutor/validator.
		inheritLog.Printf("leaf %s retains an unresolved {prompt} injection point", leaf.Source)
	}

	gen := docmodel.Generation{Mode: docmodel.ModeCombinatorial, SeedMode: docmodel.SeedModeFixed}
	if acc.generation != nil {
		gen = *acc.generation
	}
	out := docmodel.Output{}
	if acc.output != nil {
		out = *acc.output
	}

	return &docmodel.FlatDoc{
		Source:      leaf.Source,
		Parameters:  acc.parameters,
		Imports:     acc.imports,
		ImportOrder: acc.importOrder,
		Chunks:      acc.chunks,
		Prompt:      acc.prompt,
		Negative:    acc.negative,
		Generation:  gen,
		Output:      out,
	}, nil
}

func leafLevel(p *docmodel.Prompt) chainLevel {
	return chainLevel{
		path:        p.Source,
		parameters:  p.Parameters,
		imports:     p.Imports,
		importOrder: p.ImportOrder,
		chunks:      p.Chunks,
		prompt:      p.Prompt,
		hasPrompt:   p.Prompt != "",
		negative:    p.Negative,
		hasNeg:      p.Negative != "",
		generation:  p.Generation,
		output:      &p.Output,
	}
}

func templateLevel(t *docmodel.Template) chainLevel {
	return chainLevel{
		path:        t.Source,
		parameters:  t.Parameters,
		imports:     t.Imports,
		importOrder: t.ImportOrder,
		chunks:      t.Chunks,
		prompt:      t.Prompt,
		hasPrompt:   t.Prompt != "",
		negative:    t.Negative,
		hasNeg:      t.Negative != "",
		generation:  t.Generation,
	}
}

// mergeLevel applies child onto acc (acc is everything merged so far,
// root-first) per spec.md §4.I's per-field rules.
func mergeLevel(acc, child chainLevel) chainLevel {
	out := acc
	out.path = child.path

	out.parameters = deepMergeParameters(acc.parameters, child.parameters)

	if len(child.imports) > 0 {
		merged := make(map[string]docmodel.ImportSource, len(acc.imports)+len(child.imports))
		for k, v := range acc.imports {
			merged[k] = v
		}
		for k, v := range child.imports {
			merged[k] = v // child overrides parent entirely for this name
		}
		out.imports = merged

		// Root-first declaration order: keep the accumulator's existing
		// order, then append any names the child introduces for the first
		// time, in the child's own declared order.
		order := append([]string{}, acc.importOrder...)
		for _, name := range child.importOrder {
			if !sliceutil.Contains(order, name) {
				order = append(order, name)
			}
		}
		out.importOrder = order
	}

	if len(child.chunks) > 0 {
		merged := make(map[string]*docmodel.Chunk, len(acc.chunks)+len(child.chunks))
		for k, v := range acc.chunks {
			merged[k] = v
		}
		for k, v := range child.chunks {
			merged[k] = v
		}
		out.chunks = merged
	}

	out.prompt = mergeBody(acc.prompt, child.prompt, child.hasPrompt)
	out.negative = mergeBody(acc.negative, child.negative, child.hasNeg)

	if child.generation != nil {
		out.generation = child.generation
	}
	if child.output != nil {
		out.output = child.output
	}

	return out
}

// mergeBody implements the {prompt}/{negative_prompt} injection rule: if
// the parent body contains the injection token, the child body is spliced
// in; otherwise the child body replaces the parent wholesale.
func mergeBody(parent, child string, childHas bool) string {
	if !childHas {
		return parent
	}
	if strings.Contains(parent, "{prompt}") {
		return strings.Replace(parent, "{prompt}", child, 1)
	}
	if strings.Contains(parent, "{negative_prompt}") {
		return strings.Replace(parent, "{negative_prompt}", child, 1)
	}
	return child
}

func deepMergeParameters(parent, child docmodel.Parameters) docmodel.Parameters {
	if parent == nil && child == nil {
		return docmodel.Parameters{}
	}
	out := make(docmodel.Parameters, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		if childMap, ok := v.(map[string]any); ok {
			if parentMap, ok := out[k].(map[string]any); ok {
				out[k] = deepMergeMap(parentMap, childMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func deepMergeMap(parent, child map[string]any) map[string]any {
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		if childMap, ok := v.(map[string]any); ok {
			if parentMap, ok := out[k].(map[string]any); ok {
				out[k] = deepMergeMap(parentMap, childMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
