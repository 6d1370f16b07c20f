//go:build !integration

package importresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/pkg/loader"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolve_SinglePath(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "expr.yaml", "sad: crying\nhappy: smiling\n")

	cache := loader.NewCache(dir)
	flat := &docmodel.FlatDoc{
		Imports:     map[string]docmodel.ImportSource{"Expression": {Sources: []string{"expr.yaml"}}},
		ImportOrder: []string{"Expression"},
	}

	got, err := Resolve(cache, flat)
	require.NoError(t, err)
	require.Contains(t, got, "Expression")
	assert.Equal(t, []string{"sad", "happy"}, got["Expression"].Set.Keys())
	assert.Nil(t, got["Expression"].Weight)
}

func TestResolve_MergesMultipleSourcesInOrder(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "sad: crying\n")
	write(t, dir, "b.yaml", "happy: smiling\n")

	cache := loader.NewCache(dir)
	flat := &docmodel.FlatDoc{
		Imports:     map[string]docmodel.ImportSource{"Expression": {Sources: []string{"a.yaml", "b.yaml"}}},
		ImportOrder: []string{"Expression"},
	}

	got, err := Resolve(cache, flat)
	require.NoError(t, err)
	assert.Equal(t, []string{"sad", "happy"}, got["Expression"].Set.Keys())
}

func TestResolve_DuplicateKeyAcrossSourcesIsError(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "sad: crying\n")
	write(t, dir, "b.yaml", "sad: weeping\n")

	cache := loader.NewCache(dir)
	flat := &docmodel.FlatDoc{
		Imports:     map[string]docmodel.ImportSource{"Expression": {Sources: []string{"a.yaml", "b.yaml"}}},
		ImportOrder: []string{"Expression"},
	}

	_, err := Resolve(cache, flat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sad")
}

func TestResolve_WeightCarriedThrough(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "expr.yaml", "sad: crying\n")

	cache := loader.NewCache(dir)
	weight := uint32(2)
	flat := &docmodel.FlatDoc{
		Imports:     map[string]docmodel.ImportSource{"Expression": {Sources: []string{"expr.yaml"}, Weight: &weight}},
		ImportOrder: []string{"Expression"},
	}

	got, err := Resolve(cache, flat)
	require.NoError(t, err)
	require.NotNil(t, got["Expression"].Weight)
	assert.EqualValues(t, 2, *got["Expression"].Weight)
}
