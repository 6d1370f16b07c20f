//go:build !integration

package inherit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/pkg/docparse"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolve_InjectsLeafIntoParentPromptToken(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "base.template.yaml", `
version: "2.0"
prompt: "masterpiece, {prompt}"
negative_prompt: "worst quality, {negative_prompt}"
`)
	write(t, dir, "leaf.prompt.yaml", `
version: "2.0"
implements: base.template.yaml
prompt: "portrait"
negative_prompt: "blurry"
`)

	cache := loader.NewCache(dir)
	doc, err := cache.Load("leaf.prompt.yaml")
	require.NoError(t, err)
	parsed, err := docparse.Parse(doc)
	require.NoError(t, err)
	require.Equal(t, docmodel.KindPrompt, parsed.Kind)

	flat, err := NewResolver(cache, 0).Resolve(parsed.Prompt)
	require.NoError(t, err)
	assert.Equal(t, "masterpiece, portrait", flat.Prompt)
	assert.Equal(t, "worst quality, blurry", flat.Negative)
	assert.Equal(t, docmodel.ModeCombinatorial, flat.Generation.Mode)
	assert.Equal(t, docmodel.SeedModeFixed, flat.Generation.SeedMode)
}

func TestResolve_ImportOrderIsRootFirstThenNewLeafNames(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "expr.yaml", "sad: crying\n")
	write(t, dir, "pose.yaml", "standing: standing\n")
	write(t, dir, "base.template.yaml", `
version: "2.0"
prompt: "{prompt}"
imports:
  Expression: expr.yaml
`)
	write(t, dir, "leaf.prompt.yaml", `
version: "2.0"
implements: base.template.yaml
prompt: "portrait, {Expression}, {Pose}"
imports:
  Pose: pose.yaml
`)

	cache := loader.NewCache(dir)
	doc, err := cache.Load("leaf.prompt.yaml")
	require.NoError(t, err)
	parsed, err := docparse.Parse(doc)
	require.NoError(t, err)

	flat, err := NewResolver(cache, 0).Resolve(parsed.Prompt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expression", "Pose"}, flat.ImportOrder)
}

func TestResolve_ChildImportOverridesParentEntirely(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "sad: crying\n")
	write(t, dir, "b.yaml", "happy: smiling\nsad: weeping\n")
	write(t, dir, "base.template.yaml", `
version: "2.0"
prompt: "{prompt}"
imports:
  Expression: a.yaml
`)
	write(t, dir, "leaf.prompt.yaml", `
version: "2.0"
implements: base.template.yaml
prompt: "portrait, {Expression}"
imports:
  Expression: b.yaml
`)

	cache := loader.NewCache(dir)
	doc, err := cache.Load("leaf.prompt.yaml")
	require.NoError(t, err)
	parsed, err := docparse.Parse(doc)
	require.NoError(t, err)

	flat, err := NewResolver(cache, 0).Resolve(parsed.Prompt)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.yaml"}, flat.Imports["Expression"].Sources)
	assert.Equal(t, []string{"Expression"}, flat.ImportOrder)
}

func TestResolve_DeepMergesNestedParameters(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "base.template.yaml", `
version: "2.0"
prompt: "{prompt}"
parameters:
  width: 512
  height: 512
  hires_fix:
    enabled: true
    scale: 2
`)
	write(t, dir, "leaf.prompt.yaml", `
version: "2.0"
implements: base.template.yaml
prompt: "portrait"
parameters:
  height: 768
  hires_fix:
    scale: 4
`)

	cache := loader.NewCache(dir)
	doc, err := cache.Load("leaf.prompt.yaml")
	require.NoError(t, err)
	parsed, err := docparse.Parse(doc)
	require.NoError(t, err)

	flat, err := NewResolver(cache, 0).Resolve(parsed.Prompt)
	require.NoError(t, err)
	assert.EqualValues(t, 512, flat.Parameters["width"])
	assert.EqualValues(t, 768, flat.Parameters["height"])
	hires, ok := flat.Parameters["hires_fix"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, hires["enabled"])
	assert.EqualValues(t, 4, hires["scale"])
}

func TestResolve_CycleIsAnError(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.template.yaml", `
version: "2.0"
implements: b.template.yaml
prompt: "{prompt}"
`)
	write(t, dir, "b.template.yaml", `
version: "2.0"
implements: a.template.yaml
prompt: "{prompt}"
`)
	write(t, dir, "leaf.prompt.yaml", `
version: "2.0"
implements: a.template.yaml
prompt: "portrait"
`)

	cache := loader.NewCache(dir)
	doc, err := cache.Load("leaf.prompt.yaml")
	require.NoError(t, err)
	parsed, err := docparse.Parse(doc)
	require.NoError(t, err)

	_, err = NewResolver(cache, 0).Resolve(parsed.Prompt)
	require.Error(t, err)
}
