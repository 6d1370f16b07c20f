// Package validate implements spec.md §4.V: static, pre-enumeration checks
// over a resolved document plus dynamic, per-variant checks over each
// substituted body. The static phase layers a JSON Schema pass (built with
// google/jsonschema-go, compiled and executed by
// santhosh-tekuri/jsonschema/v6) on top of docparse's strict-key checks,
// mirroring the teacher's schema_validation.go, which runs a custom
// pre-pass before handing the document to its compiled JSON schema.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	jsonschemav6 "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/docmodel"
)

// schemaFor returns the structural JSON Schema for one document kind. The
// schema only encodes top-level type/required shape; docparse's strict-key
// checks and the inheritance/import/chunk resolvers cover everything else,
// so this layer exists to catch malformed nested shapes (e.g. `imports`
// that isn't a mapping) with a schema-grade error rather than a panic deep
// in a type assertion.
func schemaFor(kind docmodel.Kind) *jsonschema.Schema {
	str := &jsonschema.Schema{Type: "string"}
	obj := &jsonschema.Schema{Type: "object"}

	switch kind {
	case docmodel.KindPrompt, docmodel.KindTemplate:
		s := &jsonschema.Schema{
			Type:     "object",
			Required: []string{"version"},
			Properties: map[string]*jsonschema.Schema{
				"version":         str,
				"implements":      str,
				"prompt":          str,
				"negative_prompt": str,
				"imports":         obj,
				"chunks":          obj,
				"parameters":      obj,
				"generation":      obj,
				"output":          obj,
			},
		}
		return s
	case docmodel.KindChunk:
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"version", "body"},
			Properties: map[string]*jsonschema.Schema{
				"version":    str,
				"implements": str,
				"fields":     obj,
				"body":       str,
			},
		}
	default: // variation-set metadata is intentionally lenient (spec.md §4.P)
		return &jsonschema.Schema{Type: "object"}
	}
}

var (
	compileOnce  sync.Once
	compiled     map[docmodel.Kind]*jsonschemav6.Schema
	compileError error
)

func compiledSchemas() (map[docmodel.Kind]*jsonschemav6.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[docmodel.Kind]*jsonschemav6.Schema, 4)
		for _, kind := range []docmodel.Kind{docmodel.KindPrompt, docmodel.KindTemplate, docmodel.KindChunk, docmodel.KindVariationSet} {
			raw, err := json.Marshal(schemaFor(kind))
			if err != nil {
				compileError = err
				return
			}
			doc, err := jsonschemav6.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileError = err
				return
			}
			c := jsonschemav6.NewCompiler()
			url := "mem://" + string(kind) + ".json"
			if err := c.AddResource(url, doc); err != nil {
				compileError = err
				return
			}
			sch, err := c.Compile(url)
			if err != nil {
				compileError = err
				return
			}
			compiled[kind] = sch
		}
	})
	return compiled, compileError
}

// Schema validates a raw document map against the structural schema for
// kind. Kinds without a compiled schema pass unchecked.
func Schema(kind docmodel.Kind, raw map[string]any) error {
	schemas, err := compiledSchemas()
	if err != nil {
		return docerr.New(docerr.CategorySchema, "failed to compile document schemas").Wrap(err)
	}
	sch, ok := schemas[kind]
	if !ok {
		return nil
	}
	if err := sch.Validate(raw); err != nil {
		return docerr.New(docerr.CategorySchema, fmt.Sprintf("document failed schema validation: %v", err))
	}
	return nil
}
