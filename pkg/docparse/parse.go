// Package docparse implements spec.md §4.P: turning one loaded YAML source
// into a typed document (Prompt, Template, Chunk, or VariationSet).
// Dispatch is driven only by the file's suffix convention (spec.md
// §6: *.prompt.yaml / *.template.yaml / *.chunk.yaml|*.char.yaml / any
// other .yaml is a variation file); a file with a bare ".yaml" extension
// is always parsed as a variation set, whatever fields it holds. Uses goccy/go-yaml,
// the teacher's YAML library, including its MapSlice ordered-map decoding
// so that variation declaration order (a data-model invariant) survives
// parsing, and its FormatError for line-aware error messages.
package docparse

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/internal/obslog"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

var parseLog = obslog.New("docparse")

// allowedPromptTemplateKeys is the strict top-level key set for
// *.prompt.yaml and *.template.yaml documents.
var allowedPromptTemplateKeys = map[string]bool{
	"version": true, "implements": true, "imports": true, "chunks": true,
	"parameters": true, "prompt": true, "negative_prompt": true,
	"generation": true, "output": true,
}

// allowedChunkKeys is the strict top-level key set for *.chunk.yaml / *.char.yaml.
var allowedChunkKeys = map[string]bool{
	"version": true, "implements": true, "fields": true, "body": true,
}

// ParsedDoc is the sum type result of Parse: exactly one of the four
// pointers is non-nil, matching Kind.
type ParsedDoc struct {
	Kind         docmodel.Kind
	Prompt       *docmodel.Prompt
	Template     *docmodel.Template
	Chunk        *docmodel.Chunk
	VariationSet *docmodel.VariationSet
}

// Parse dispatches on doc.Path's suffix and decodes accordingly.
func Parse(doc *loader.Document) (*ParsedDoc, error) {
	switch {
	case strings.HasSuffix(doc.Path, ".prompt.yaml"):
		p, err := parsePrompt(doc)
		if err != nil {
			return nil, err
		}
		return &ParsedDoc{Kind: docmodel.KindPrompt, Prompt: p}, nil
	case strings.HasSuffix(doc.Path, ".template.yaml"):
		tmpl, err := parseTemplate(doc)
		if err != nil {
			return nil, err
		}
		return &ParsedDoc{Kind: docmodel.KindTemplate, Template: tmpl}, nil
	case strings.HasSuffix(doc.Path, ".chunk.yaml"), strings.HasSuffix(doc.Path, ".char.yaml"):
		c, err := parseChunk(doc)
		if err != nil {
			return nil, err
		}
		return &ParsedDoc{Kind: docmodel.KindChunk, Chunk: c}, nil
	default:
		vs, err := parseVariationSet(doc)
		if err != nil {
			return nil, err
		}
		return &ParsedDoc{Kind: docmodel.KindVariationSet, VariationSet: vs}, nil
	}
}

// yamlError wraps a goccy/go-yaml decode error with file context, using the
// library's own FormatError for a source-annotated message.
func yamlError(doc *loader.Document, err error) error {
	formatted := yaml.FormatError(err, false, true)
	return docerr.New(docerr.CategoryParse, formatted).WithLocation(doc.Path, "", 0, 0).Wrap(err)
}

func checkVersion(doc *loader.Document, raw map[string]any) error {
	v, ok := raw["version"]
	if !ok {
		return docerr.New(docerr.CategoryParse, "missing required field 'version'").WithLocation(doc.Path, "$.version", 0, 0)
	}
	s, ok := v.(string)
	if !ok || s != docmodel.SchemaVersion {
		return docerr.New(docerr.CategoryParse,
			fmt.Sprintf("unsupported version %v (expected %q)", v, docmodel.SchemaVersion)).
			WithLocation(doc.Path, "$.version", 0, 0)
	}
	return nil
}

func checkStrictKeys(doc *loader.Document, raw map[string]any, allowed map[string]bool, kind string) error {
	var unknown []string
	for k := range raw {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return docerr.New(docerr.CategoryParse,
			fmt.Sprintf("unknown field(s) %v in %s document", unknown, kind)).
			WithLocation(doc.Path, "$", 0, 0)
	}
	return nil
}

func unmarshalRaw(doc *loader.Document) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(doc.Content, &raw); err != nil {
		return nil, yamlError(doc, err)
	}
	return raw, nil
}

type promptTemplateYAML struct {
	Version        string         `yaml:"version"`
	Implements     string         `yaml:"implements,omitempty"`
	Imports        yaml.MapSlice  `yaml:"imports,omitempty"`
	Chunks         map[string]any `yaml:"chunks,omitempty"`
	Parameters     map[string]any `yaml:"parameters,omitempty"`
	Prompt         string         `yaml:"prompt,omitempty"`
	NegativePrompt string         `yaml:"negative_prompt,omitempty"`
	Generation     *generationYAML `yaml:"generation,omitempty"`
	Output         *outputYAML     `yaml:"output,omitempty"`
}

type generationYAML struct {
	Mode      string `yaml:"mode"`
	Seed      int64  `yaml:"seed"`
	SeedMode  string `yaml:"seed_mode"`
	MaxImages uint32 `yaml:"max_images"`
}

type outputYAML struct {
	SessionName string `yaml:"session_name"`
}

func parsePrompt(doc *loader.Document) (*docmodel.Prompt, error) {
	raw, err := unmarshalRaw(doc)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(doc, raw); err != nil {
		return nil, err
	}
	if err := checkStrictKeys(doc, raw, allowedPromptTemplateKeys, "prompt"); err != nil {
		return nil, err
	}

	var y promptTemplateYAML
	if err := yaml.Unmarshal(doc.Content, &y); err != nil {
		return nil, yamlError(doc, err)
	}

	if y.Prompt == "" && y.Implements == "" {
		return nil, docerr.New(docerr.CategoryParse,
			"prompt document requires 'prompt' or 'implements'").WithLocation(doc.Path, "$", 0, 0)
	}

	imports, order, err := parseImports(doc, y.Imports)
	if err != nil {
		return nil, err
	}
	chunks, err := parseInlineChunks(doc, y.Chunks)
	if err != nil {
		return nil, err
	}

	var gen *docmodel.Generation
	if y.Generation != nil {
		g := generationFromYAML(*y.Generation)
		if err := validateGeneration(doc, g); err != nil {
			return nil, err
		}
		gen = &g
	}

	out := docmodel.Output{}
	if y.Output != nil {
		out.SessionName = y.Output.SessionName
	}

	return &docmodel.Prompt{
		Source:      doc.Path,
		Implements:  y.Implements,
		Parameters:  docmodel.Parameters(y.Parameters),
		Imports:     imports,
		ImportOrder: order,
		Chunks:      chunks,
		Prompt:      y.Prompt,
		Negative:    y.NegativePrompt,
		Generation:  gen,
		Output:      out,
	}, nil
}

func parseTemplate(doc *loader.Document) (*docmodel.Template, error) {
	raw, err := unmarshalRaw(doc)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(doc, raw); err != nil {
		return nil, err
	}
	if err := checkStrictKeys(doc, raw, allowedPromptTemplateKeys, "template"); err != nil {
		return nil, err
	}

	var y promptTemplateYAML
	if err := yaml.Unmarshal(doc.Content, &y); err != nil {
		return nil, yamlError(doc, err)
	}

	imports, order, err := parseImports(doc, y.Imports)
	if err != nil {
		return nil, err
	}
	chunks, err := parseInlineChunks(doc, y.Chunks)
	if err != nil {
		return nil, err
	}

	var gen *docmodel.Generation
	if y.Generation != nil {
		g := generationFromYAML(*y.Generation)
		if err := validateGeneration(doc, g); err != nil {
			return nil, err
		}
		gen = &g
	}

	return &docmodel.Template{
		Source:      doc.Path,
		Implements:  y.Implements,
		Parameters:  docmodel.Parameters(y.Parameters),
		Imports:     imports,
		ImportOrder: order,
		Chunks:      chunks,
		Prompt:      y.Prompt,
		Negative:    y.NegativePrompt,
		Generation:  gen,
	}, nil
}

type chunkYAML struct {
	Version    string                    `yaml:"version"`
	Implements string                    `yaml:"implements,omitempty"`
	Fields     map[string]chunkFieldYAML `yaml:"fields,omitempty"`
	Body       string                    `yaml:"body"`
}

type chunkFieldYAML struct {
	Default *string `yaml:"default,omitempty"`
}

func parseChunk(doc *loader.Document) (*docmodel.Chunk, error) {
	raw, err := unmarshalRaw(doc)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(doc, raw); err != nil {
		return nil, err
	}
	if err := checkStrictKeys(doc, raw, allowedChunkKeys, "chunk"); err != nil {
		return nil, err
	}

	var y chunkYAML
	if err := yaml.Unmarshal(doc.Content, &y); err != nil {
		return nil, yamlError(doc, err)
	}

	fields := make([]docmodel.ChunkField, 0, len(y.Fields))
	for name, f := range y.Fields {
		fields = append(fields, docmodel.ChunkField{Name: name, Default: f.Default})
	}

	return &docmodel.Chunk{
		Source:     doc.Path,
		Name:       chunkNameFromPath(doc.Path),
		Implements: y.Implements,
		Fields:     fields,
		Body:       y.Body,
	}, nil
}

func chunkNameFromPath(path string) string {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx != -1 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".chunk.yaml")
	base = strings.TrimSuffix(base, ".char.yaml")
	return base
}

// parseVariationSet handles both shapes named in spec.md §6: a flat
// key:text mapping, or an object with type: multi_field + variations: [...].
func parseVariationSet(doc *loader.Document) (*docmodel.VariationSet, error) {
	var probe struct {
		Type       string `yaml:"type,omitempty"`
		Variations []struct {
			Key    string            `yaml:"key"`
			Fields map[string]string `yaml:"fields"`
		} `yaml:"variations,omitempty"`
	}
	if err := yaml.Unmarshal(doc.Content, &probe); err != nil {
		return nil, yamlError(doc, err)
	}

	if probe.Type == string(docmodel.SetTypeMultiField) || len(probe.Variations) > 0 {
		set := &docmodel.VariationSet{Source: doc.Path, Type: docmodel.SetTypeMultiField}
		seen := make(map[string]bool, len(probe.Variations))
		for _, v := range probe.Variations {
			if seen[v.Key] {
				return nil, docerr.New(docerr.CategoryParse,
					fmt.Sprintf("duplicate variation key %q in %s", v.Key, doc.Path)).WithLocation(doc.Path, "$.variations", 0, 0)
			}
			seen[v.Key] = true
			set.Variations = append(set.Variations, docmodel.Variation{Key: v.Key, Fields: v.Fields})
		}
		return set, nil
	}

	var ordered yaml.MapSlice
	if err := yaml.Unmarshal(doc.Content, &ordered); err != nil {
		return nil, yamlError(doc, err)
	}

	set := &docmodel.VariationSet{Source: doc.Path, Type: docmodel.SetTypeFlat}
	seen := make(map[string]bool, len(ordered))
	for _, item := range ordered {
		key, ok := item.Key.(string)
		if !ok || key == "version" || key == "type" {
			continue // lenient: variation-set metadata keys are not variations
		}
		text, ok := item.Value.(string)
		if !ok {
			return nil, docerr.New(docerr.CategoryParse,
				fmt.Sprintf("variation %q must be a string fragment", key)).WithLocation(doc.Path, "$."+key, 0, 0)
		}
		if seen[key] {
			return nil, docerr.New(docerr.CategoryParse,
				fmt.Sprintf("duplicate variation key %q in %s", key, doc.Path)).WithLocation(doc.Path, "$."+key, 0, 0)
		}
		seen[key] = true
		set.Variations = append(set.Variations, docmodel.Variation{Key: key, Text: text})
	}

	parseLog.Printf("parsed variation set %s: %d keys", doc.Path, len(set.Variations))
	return set, nil
}

func generationFromYAML(y generationYAML) docmodel.Generation {
	g := docmodel.Generation{
		Mode:      docmodel.GenerationMode(y.Mode),
		Seed:      y.Seed,
		SeedMode:  docmodel.SeedMode(y.SeedMode),
		MaxImages: y.MaxImages,
	}
	if g.Mode == "" {
		g.Mode = docmodel.ModeCombinatorial
	}
	if g.SeedMode == "" {
		g.SeedMode = docmodel.SeedModeFixed
	}
	return g
}

func validateGeneration(doc *loader.Document, g docmodel.Generation) error {
	if g.Mode != docmodel.ModeCombinatorial && g.Mode != docmodel.ModeRandom {
		return docerr.New(docerr.CategoryParse,
			fmt.Sprintf("generation.mode %q must be combinatorial or random", g.Mode)).WithLocation(doc.Path, "$.generation.mode", 0, 0)
	}
	switch g.SeedMode {
	case docmodel.SeedModeFixed, docmodel.SeedModeProgressive, docmodel.SeedModeRandom:
	default:
		return docerr.New(docerr.CategoryParse,
			fmt.Sprintf("generation.seed_mode %q must be fixed, progressive, or random", g.SeedMode)).WithLocation(doc.Path, "$.generation.seed_mode", 0, 0)
	}
	return nil
}

// parseImports turns the raw `imports:` mapping into ImportSource values,
// handling all three shapes from spec.md §4.M: a single path, a list of
// paths, and the object form carrying a loop weight. The mapping is decoded
// as a yaml.MapSlice so declaration order survives for axis-ordering
// tiebreaks (spec.md §4.E).
func parseImports(doc *loader.Document, raw yaml.MapSlice) (map[string]docmodel.ImportSource, []string, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	out := make(map[string]docmodel.ImportSource, len(raw))
	order := make([]string, 0, len(raw))
	for _, item := range raw {
		name, ok := item.Key.(string)
		if !ok {
			return nil, nil, docerr.New(docerr.CategoryParse, "imports keys must be strings").WithLocation(doc.Path, "$.imports", 0, 0)
		}
		src, err := parseOneImport(doc, name, item.Value)
		if err != nil {
			return nil, nil, err
		}
		out[name] = src
		order = append(order, name)
	}
	return out, order, nil
}

func parseOneImport(doc *loader.Document, name string, v any) (docmodel.ImportSource, error) {
	switch val := v.(type) {
	case string:
		return docmodel.ImportSource{Sources: []string{val}}, nil
	case []any:
		paths := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return docmodel.ImportSource{}, docerr.New(docerr.CategoryParse,
					fmt.Sprintf("imports.%s: list entries must be strings", name)).WithLocation(doc.Path, "$.imports."+name, 0, 0)
			}
			paths = append(paths, s)
		}
		return docmodel.ImportSource{Sources: paths}, nil
	case map[string]any:
		var paths []string
		if one, ok := val["source"].(string); ok {
			paths = []string{one}
		}
		if list, ok := val["sources"].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					paths = append(paths, s)
				}
			}
		}
		if len(paths) == 0 {
			return docmodel.ImportSource{}, docerr.New(docerr.CategoryParse,
				fmt.Sprintf("imports.%s: object form requires 'source' or 'sources'", name)).WithLocation(doc.Path, "$.imports."+name, 0, 0)
		}
		src := docmodel.ImportSource{Sources: paths}
		if w, ok := val["weight"]; ok {
			weight, ok := toUint32(w)
			if !ok {
				return docmodel.ImportSource{}, docerr.New(docerr.CategoryParse,
					fmt.Sprintf("imports.%s.weight must be a non-negative integer", name)).WithLocation(doc.Path, "$.imports."+name+".weight", 0, 0)
			}
			src.Weight = &weight
		}
		return src, nil
	default:
		return docmodel.ImportSource{}, docerr.New(docerr.CategoryParse,
			fmt.Sprintf("imports.%s has unsupported shape", name)).WithLocation(doc.Path, "$.imports."+name, 0, 0)
	}
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case uint64:
		return uint32(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	default:
		return 0, false
	}
}

// parseInlineChunks parses the `chunks:` mapping of named chunk overrides
// declared directly inside a Prompt/Template document (as opposed to chunks
// loaded from *.chunk.yaml files, which chunkresolve loads separately).
func parseInlineChunks(doc *loader.Document, raw map[string]any) (map[string]*docmodel.Chunk, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]*docmodel.Chunk, len(raw))
	for name, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, docerr.New(docerr.CategoryParse,
				fmt.Sprintf("chunks.%s must be an object", name)).WithLocation(doc.Path, "$.chunks."+name, 0, 0)
		}
		c := &docmodel.Chunk{Source: doc.Path, Name: name}
		if body, ok := m["body"].(string); ok {
			c.Body = body
		}
		if impl, ok := m["implements"].(string); ok {
			c.Implements = impl
		}
		if fields, ok := m["fields"].(map[string]any); ok {
			for fname, fv := range fields {
				if fm, ok := fv.(map[string]any); ok {
					field := docmodel.ChunkField{Name: fname}
					if def, ok := fm["default"].(string); ok {
						field.Default = &def
					}
					c.Fields = append(c.Fields, field)
				}
			}
		}
		out[name] = c
	}
	return out, nil
}
