//go:build !integration

package docparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

func loadDoc(t *testing.T, dir, name, content string) *loader.Document {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	cache := loader.NewCache(dir)
	doc, err := cache.Load(name)
	require.NoError(t, err)
	return doc
}

func TestParsePrompt(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "leaf.prompt.yaml", `
version: "2.0"
prompt: "portrait, {Expression}"
imports:
  Expression: expr.yaml
generation:
  mode: combinatorial
  seed: 1000
  seed_mode: progressive
`)

	parsed, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "portrait, {Expression}", parsed.Prompt.Prompt)
	assert.Equal(t, []string{"expr.yaml"}, parsed.Prompt.Imports["Expression"].Sources)
	assert.EqualValues(t, 1000, parsed.Prompt.Generation.Seed)
}

func TestParsePrompt_MissingVersion(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "leaf.prompt.yaml", `prompt: "x"`)

	_, err := Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestParsePrompt_UnknownField(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "leaf.prompt.yaml", `
version: "2.0"
prompt: "x"
bogus_field: true
`)

	_, err := Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_field")
}

func TestParseVariationSet_FlatPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "expr.yaml", `
sad: crying
happy: smiling
neutral: blank stare
`)

	parsed, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, parsed.VariationSet)
	assert.Equal(t, []string{"sad", "happy", "neutral"}, parsed.VariationSet.Keys())
}

func TestParseVariationSet_MultiField(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "outfits.yaml", `
type: multi_field
variations:
  - key: casual
    fields:
      top: t-shirt
      bottom: jeans
  - key: formal
    fields:
      top: blazer
      bottom: slacks
`)

	parsed, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, parsed.VariationSet)
	assert.Equal(t, []string{"casual", "formal"}, parsed.VariationSet.Keys())
	v, ok := parsed.VariationSet.Lookup("casual")
	require.True(t, ok)
	assert.Equal(t, "t-shirt", v.Fields["top"])
}

func TestParseChunk(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "pose.chunk.yaml", `
version: "2.0"
fields:
  angle:
    default: "front view"
body: "{angle}, dynamic pose"
`)

	parsed, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, parsed.Chunk)
	assert.Equal(t, "pose", parsed.Chunk.Name)
	def, ok := parsed.Chunk.FieldDefault("angle")
	require.True(t, ok)
	assert.Equal(t, "front view", def)
}

func TestParseTemplate_InjectionPoint(t *testing.T) {
	dir := t.TempDir()
	doc := loadDoc(t, dir, "base.template.yaml", `
version: "2.0"
prompt: "masterpiece, {prompt}"
`)

	parsed, err := Parse(doc)
	require.NoError(t, err)
	require.NotNil(t, parsed.Template)
	assert.Contains(t, parsed.Template.Prompt, "{prompt}")
}
