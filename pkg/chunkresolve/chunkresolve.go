// Package chunkresolve implements spec.md §4.C: expanding `{ChunkName}` and
// `{ChunkName with field=Source[selector], …}` references into their chunk
// bodies, top-down, until no chunk reference remains. Grounded on the
// teacher's import_topological.go accumulate-then-replay pattern (reused
// here for a chunk's own `implements` chain) and on internal/placeholder's
// AST parser rather than ad-hoc string replace (spec.md §9).
package chunkresolve

import (
	"fmt"
	"strings"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/internal/placeholder"
	"github.com/sdtmpl/sdtmpl/pkg/docparse"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

var chunkLog = obslog.New("chunkresolve")

// maxExpansionPasses bounds top-down chunk expansion. A well-formed
// document converges in a handful of passes (depth of chunk-of-chunk
// nesting); this guards against an undetected reference cycle between
// sibling chunks.
const maxExpansionPasses = 32

// Resolver expands chunk references against a fixed set of sibling chunks
// declared on the owning document (inline `chunks:` plus any the document's
// inheritance chain contributed).
type Resolver struct {
	cache  *loader.Cache
	chunks map[string]*docmodel.Chunk

	resolvedChunks map[string]*docmodel.Chunk // memoized post-implements-merge chunks, by sibling name
}

// NewResolver returns a Resolver over the given sibling chunk set.
func NewResolver(cache *loader.Cache, chunks map[string]*docmodel.Chunk) *Resolver {
	return &Resolver{cache: cache, chunks: chunks, resolvedChunks: map[string]*docmodel.Chunk{}}
}

// Expand rewrites body by replacing every chunk reference with that chunk's
// (implements-resolved) text, substituting each chunk field from its
// `with` binding, its own declared default, or erroring if neither exists.
// The result contains only plain `{Name}` / `{Name[selector]}` placeholders
// for the substitutor and enumerator to consume; a with-bound field's axis
// token lands exactly where its host chunk reference stood, which is what
// gives it "appears after its host placeholder" ordering for free.
func (r *Resolver) Expand(body string) (string, error) {
	for pass := 0; pass < maxExpansionPasses; pass++ {
		nodes, err := placeholder.Parse(body)
		if err != nil {
			return "", docerr.New(docerr.CategoryUnresolvedPlaceholder, err.Error())
		}

		var sb strings.Builder
		expandedAny := false
		for _, n := range nodes {
			if n.Kind != placeholder.KindPlaceholder {
				sb.WriteString(n.Text)
				continue
			}
			chunk, ok := r.chunks[n.Placeholder.Name]
			if !ok {
				sb.WriteString(reconstructPlaceholder(n.Placeholder))
				continue
			}
			expandedAny = true
			resolved, err := r.resolveChunk(chunk)
			if err != nil {
				return "", err
			}
			text, err := expandFields(resolved, n.Placeholder.With)
			if err != nil {
				return "", err
			}
			sb.WriteString(text)
		}

		body = sb.String()
		if !expandedAny {
			chunkLog.Printf("chunk expansion converged after %d pass(es)", pass)
			return body, nil
		}
	}
	return "", docerr.New(docerr.CategoryCycle, fmt.Sprintf("chunk expansion did not converge after %d passes; check for a reference cycle between sibling chunks", maxExpansionPasses))
}

// resolveChunk returns chunk with its own `implements` chain merged in,
// memoized by sibling name since several placeholders may reference it.
// Cycle detection across the chain uses the shared cache's BeginLoad/EndLoad
// "currently loading" set (spec.md §4.L), the same mechanism the document
// inheritance resolver uses for its implements chain.
func (r *Resolver) resolveChunk(chunk *docmodel.Chunk) (*docmodel.Chunk, error) {
	if cached, ok := r.resolvedChunks[chunk.Name]; ok {
		return cached, nil
	}

	// A chunk with no implements chain has nothing to walk, so it never
	// touches the cache's cycle tracking — this keeps chunk-only callers
	// (no implements-chain use) free of a cache dependency altogether.
	if chunk.Implements == "" {
		acc := mergeChunk(nil, chunk)
		r.resolvedChunks[chunk.Name] = acc
		return acc, nil
	}

	if err := r.cache.BeginLoad(chunk.Source, nil); err != nil {
		return nil, err
	}
	inProgress := []string{chunk.Source}
	defer func() {
		for _, p := range inProgress {
			r.cache.EndLoad(p)
		}
	}()

	chain := []*docmodel.Chunk{chunk}
	cur := chunk
	for cur.Implements != "" {
		abs, err := r.cache.Resolve(cur.Implements)
		if err != nil {
			return nil, err
		}
		if err := r.cache.BeginLoad(abs, inProgress); err != nil {
			if derr, ok := err.(*docerr.Error); ok {
				return nil, derr.WithLocation(chunk.Source, "$.implements", 0, 0)
			}
			return nil, err
		}
		inProgress = append(inProgress, abs)

		parent, err := r.loadChunkFile(cur.Implements)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		cur = parent
	}

	var acc *docmodel.Chunk
	for i := len(chain) - 1; i >= 0; i-- {
		acc = mergeChunk(acc, chain[i])
	}
	r.resolvedChunks[chunk.Name] = acc
	return acc, nil
}

func (r *Resolver) loadChunkFile(path string) (*docmodel.Chunk, error) {
	doc, err := r.cache.Load(path)
	if err != nil {
		return nil, err
	}
	parsed, err := docparse.Parse(doc)
	if err != nil {
		return nil, err
	}
	if parsed.Kind != docmodel.KindChunk {
		return nil, docerr.New(docerr.CategoryParse,
			fmt.Sprintf("%s: chunk implements must reference a *.chunk.yaml document", path)).WithLocation(path, "$.implements", 0, 0)
	}
	return parsed.Chunk, nil
}

// mergeChunk applies child onto acc using the same root-first, per-field
// merge posture as the inheritance resolver (spec.md §4.I), generalized to
// a Chunk's two mergeable parts: its field declarations and its body, which
// honors the same `{prompt}` splice-or-replace convention used for
// Prompt/Template bodies.
func mergeChunk(acc, child *docmodel.Chunk) *docmodel.Chunk {
	if acc == nil {
		return &docmodel.Chunk{
			Name:   child.Name,
			Source: child.Source,
			Fields: append([]docmodel.ChunkField{}, child.Fields...),
			Body:   child.Body,
		}
	}

	fieldOrder := make([]string, 0, len(acc.Fields)+len(child.Fields))
	fieldByName := make(map[string]docmodel.ChunkField, len(acc.Fields)+len(child.Fields))
	for _, f := range acc.Fields {
		fieldByName[f.Name] = f
		fieldOrder = append(fieldOrder, f.Name)
	}
	for _, f := range child.Fields {
		if _, exists := fieldByName[f.Name]; !exists {
			fieldOrder = append(fieldOrder, f.Name)
		}
		fieldByName[f.Name] = f
	}
	fields := make([]docmodel.ChunkField, len(fieldOrder))
	for i, name := range fieldOrder {
		fields[i] = fieldByName[name]
	}

	return &docmodel.Chunk{
		Name:   child.Name,
		Source: child.Source,
		Fields: fields,
		Body:   mergeChunkBody(acc.Body, child.Body),
	}
}

func mergeChunkBody(parent, child string) string {
	if child == "" {
		return parent
	}
	if strings.Contains(parent, "{prompt}") {
		return strings.Replace(parent, "{prompt}", child, 1)
	}
	return child
}

// expandFields substitutes chunk's own `{field}` placeholders in its body
// using bindings (from the invocation's `with` clause) first, then the
// chunk's own declared default. A field with neither is an error. A
// placeholder name the chunk doesn't declare as a field is passed through
// unchanged — it may be a reference to another sibling chunk, resolved on
// the Expand loop's next pass.
func expandFields(chunk *docmodel.Chunk, with []placeholder.Binding) (string, error) {
	bindingByField := make(map[string]placeholder.Binding, len(with))
	for _, b := range with {
		bindingByField[b.Field] = b
	}

	nodes, err := placeholder.Parse(chunk.Body)
	if err != nil {
		return "", docerr.New(docerr.CategoryUnresolvedPlaceholder, err.Error()).WithLocation(chunk.Source, "$.body", 0, 0)
	}

	var sb strings.Builder
	for _, n := range nodes {
		if n.Kind != placeholder.KindPlaceholder {
			sb.WriteString(n.Text)
			continue
		}
		field := n.Placeholder.Name
		if !hasField(chunk, field) {
			sb.WriteString(reconstructPlaceholder(n.Placeholder))
			continue
		}
		if b, ok := bindingByField[field]; ok {
			sb.WriteString(reconstructAxisToken(b.Source, b.Selector))
			continue
		}
		def, ok := chunk.FieldDefault(field)
		if !ok {
			return "", docerr.New(docerr.CategoryUnresolvedPlaceholder,
				fmt.Sprintf("chunk %q field %q has no 'with' binding and no declared default", chunk.Name, field)).
				WithLocation(chunk.Source, "$.fields."+field, 0, 0)
		}
		sb.WriteString(def)
	}
	return sb.String(), nil
}

func reconstructPlaceholder(p placeholder.Placeholder) string {
	if len(p.With) > 0 {
		parts := make([]string, len(p.With))
		for i, b := range p.With {
			val := b.Source
			if b.Selector != "" {
				val += "[" + b.Selector + "]"
			}
			parts[i] = b.Field + "=" + val
		}
		return "{" + p.Name + " with " + strings.Join(parts, ", ") + "}"
	}
	if p.Selector != "" {
		return "{" + p.Name + "[" + p.Selector + "]}"
	}
	return "{" + p.Name + "}"
}

func hasField(chunk *docmodel.Chunk, name string) bool {
	for _, f := range chunk.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func reconstructAxisToken(source, selector string) string {
	if selector != "" {
		return "{" + source + "[" + selector + "]}"
	}
	return "{" + source + "}"
}
