// Package docmodel defines the immutable document types shared across the
// template resolution pipeline: Variation, VariationSet, Chunk, Template,
// Prompt, and the flattened document produced by inheritance resolution.
// Stages build these once per run and never mutate them afterward.
package docmodel

// SchemaVersion is the only document version this engine understands.
const SchemaVersion = "2.0"

// Kind discriminates the four document shapes a YAML file can take.
type Kind string

const (
	KindPrompt       Kind = "prompt"
	KindTemplate     Kind = "template"
	KindChunk        Kind = "chunk"
	KindVariationSet Kind = "variationset"
)

// Variation is a single named prompt fragment within a VariationSet.
// Text may contain commas; it is a fragment, not a list.
type Variation struct {
	Key  string
	Text string
	// Fields holds the multi_field mapping (field name -> text fragment)
	// when the owning VariationSet has Type == MultiField. Empty otherwise.
	Fields map[string]string
}

// SetType distinguishes a flat key->text variation set from a multi_field one.
type SetType string

const (
	SetTypeFlat       SetType = ""
	SetTypeMultiField SetType = "multi_field"
)

// VariationSet is the ordered, file-insertion-ordered sequence of Variations
// loaded from a single YAML source.
type VariationSet struct {
	Source     string // canonical absolute path this set was loaded from
	Type       SetType
	Variations []Variation
}

// Keys returns the variation keys in declared order.
func (s *VariationSet) Keys() []string {
	keys := make([]string, len(s.Variations))
	for i, v := range s.Variations {
		keys[i] = v.Key
	}
	return keys
}

// Lookup returns the Variation with the given key, if present.
func (s *VariationSet) Lookup(key string) (Variation, bool) {
	for _, v := range s.Variations {
		if v.Key == key {
			return v, true
		}
	}
	return Variation{}, false
}

// ChunkField is a typed field declared on a Chunk. Default is nil when the
// field carries no declared default — it must then be filled by a `with`
// binding wherever the chunk is referenced.
type ChunkField struct {
	Name    string
	Default *string
}

// Chunk is a reusable named text fragment with zero or more typed fields.
// May implement a parent chunk (single inheritance, acyclic).
type Chunk struct {
	Source      string
	Name        string
	Implements  string
	Fields      []ChunkField
	Body        string
	declaredIdx int // not set by any parser in this module; always zero
}

// FieldDefault returns the declared default text for a field name. The
// second return is false both when the field is undeclared and when it is
// declared without a default.
func (c *Chunk) FieldDefault(name string) (string, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			if f.Default == nil {
				return "", false
			}
			return *f.Default, true
		}
	}
	return "", false
}

// ImportSource describes one or more YAML files contributing to a single
// import name: either a single path, a list of paths, or an object form
// carrying an explicit loop weight.
type ImportSource struct {
	Sources []string
	Weight  *uint32 // nil means "no declared weight"
}

// Parameters is a deep-mergeable map of Stable Diffusion API knobs.
type Parameters map[string]any

// GenerationMode selects combinatorial or random enumeration.
type GenerationMode string

const (
	ModeCombinatorial GenerationMode = "combinatorial"
	ModeRandom        GenerationMode = "random"
)

// SeedMode selects the per-variant seed assignment policy.
type SeedMode string

const (
	SeedModeFixed       SeedMode = "fixed"
	SeedModeProgressive SeedMode = "progressive"
	SeedModeRandom      SeedMode = "random"
)

// Generation holds the enumeration and seeding settings for a run.
type Generation struct {
	Mode      GenerationMode
	Seed      int64
	SeedMode  SeedMode
	MaxImages uint32 // 0 = unbounded, up to the combinatorial total
}

// Output holds session-naming settings for a run (driver-facing only).
type Output struct {
	SessionName string
}

// RawDoc is the not-yet-typed result of YAML parsing: a generic map plus
// the metadata the parser needs to dispatch on document Kind.
type RawDoc struct {
	Source  string
	Version string
	Fields  map[string]any
}

// Template is a reusable Prompt skeleton with an inheritance chain.
type Template struct {
	Source      string
	Implements  string // path to parent template, empty if root
	Parameters  Parameters
	Imports     map[string]ImportSource
	ImportOrder []string // declaration order, for axis tiebreaks
	Chunks      map[string]*Chunk
	Prompt      string
	Negative    string
	Generation  *Generation // defaults, may be nil
}

// Prompt is a leaf document: may implement a Template, adds/overrides fields.
type Prompt struct {
	Source      string
	Implements  string
	Parameters  Parameters
	Imports     map[string]ImportSource
	ImportOrder []string
	Chunks      map[string]*Chunk
	Prompt      string
	Negative    string
	Generation  *Generation // nil means "inherit from the implements chain"
	Output      Output
}

// FlatDoc is the immutable result of walking a Prompt's `implements` chain
// and merging every ancestor Template under the rules in the inheritance
// resolver. Later stages consume only FlatDoc; no parent pointers survive.
type FlatDoc struct {
	Source     string
	Parameters Parameters
	Imports    map[string]ImportSource
	// ImportOrder preserves declaration order for axis-ordering tiebreaks.
	ImportOrder []string
	Chunks      map[string]*Chunk
	Prompt      string
	Negative    string
	Generation  Generation
	Output      Output
}
