//go:build !integration

package chunkresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
)

func TestExpand_SimpleChunkUsesDeclaredDefault(t *testing.T) {
	chunks := map[string]*docmodel.Chunk{
		"pose": {
			Name:   "pose",
			Fields: []docmodel.ChunkField{{Name: "angle", Default: strPtr("front view")}},
			Body:   "{angle}, dynamic pose",
		},
	}
	r := NewResolver(nil, chunks)

	out, err := r.Expand("portrait, {pose}")
	require.NoError(t, err)
	assert.Equal(t, "portrait, front view, dynamic pose", out)
}

func TestExpand_WithBindingBecomesTopLevelPlaceholder(t *testing.T) {
	chunks := map[string]*docmodel.Chunk{
		"pose": {
			Name:   "pose",
			Fields: []docmodel.ChunkField{{Name: "angle", Default: strPtr("front view")}},
			Body:   "{angle}, dynamic pose",
		},
	}
	r := NewResolver(nil, chunks)

	out, err := r.Expand("portrait, {pose with angle=Angles[keys:low]}")
	require.NoError(t, err)
	assert.Equal(t, "portrait, {Angles[keys:low]}, dynamic pose", out)
}

func TestExpand_NestedChunkExpandsAcrossPasses(t *testing.T) {
	chunks := map[string]*docmodel.Chunk{
		"outer": {Name: "outer", Body: "{inner}, outer-suffix"},
		"inner": {Name: "inner", Body: "inner-text"},
	}
	r := NewResolver(nil, chunks)

	out, err := r.Expand("{outer}")
	require.NoError(t, err)
	assert.Equal(t, "inner-text, outer-suffix", out)
}

func TestExpand_UnboundFieldWithNoDefaultIsError(t *testing.T) {
	chunks := map[string]*docmodel.Chunk{
		"pose": {Name: "pose", Fields: []docmodel.ChunkField{{Name: "angle"}}, Body: "{angle}"},
	}
	r := NewResolver(nil, chunks)

	_, err := r.Expand("{pose}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "angle")
}

func strPtr(s string) *string { return &s }

func TestExpand_UnrelatedPlaceholderPassesThrough(t *testing.T) {
	chunks := map[string]*docmodel.Chunk{}
	r := NewResolver(nil, chunks)

	out, err := r.Expand("portrait, {Expression[random:2]}")
	require.NoError(t, err)
	assert.Equal(t, "portrait, {Expression[random:2]}", out)
}
