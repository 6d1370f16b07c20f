//go:build !integration

package manifest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/pkg/enumerate"
)

func sampleFlat() *docmodel.FlatDoc {
	return &docmodel.FlatDoc{
		Generation: docmodel.Generation{
			Mode:     docmodel.ModeCombinatorial,
			SeedMode: docmodel.SeedModeProgressive,
			Seed:     42,
		},
		Parameters: docmodel.Parameters{"steps": 30, "cfg_scale": 7.5},
	}
}

func sampleAxes() []enumerate.Placeholder {
	return []enumerate.Placeholder{
		{
			Name: "Expression",
			Values: []docmodel.Variation{
				{Key: "sad", Text: "sad expression"},
				{Key: "happy", Text: "happy expression"},
			},
		},
	}
}

func TestBuildSnapshot_CarriesGenerationAndVariationKeys(t *testing.T) {
	flat := sampleFlat()
	snap := BuildSnapshot(flat, "portrait, {Expression}", "blurry", sampleAxes(), 2, 2, "2026-07-31T00:00:00Z", map[string]string{"host": "test"})

	assert.Equal(t, docmodel.SchemaVersion, snap.Version)
	assert.Equal(t, "2026-07-31T00:00:00Z", snap.Timestamp)
	assert.Equal(t, "portrait, {Expression}", snap.ResolvedTemplate.Prompt)
	assert.Equal(t, "blurry", snap.ResolvedTemplate.Negative)
	assert.Equal(t, docmodel.ModeCombinatorial, snap.GenerationParams.Mode)
	assert.EqualValues(t, 42, snap.GenerationParams.BaseSeed)
	assert.EqualValues(t, 2, snap.GenerationParams.TotalCombinations)
	assert.Equal(t, []string{"sad", "happy"}, snap.Variations["Expression"])
	assert.Equal(t, 30, snap.APIParams["steps"])
}

func TestManifest_AddImageAppendsInOrder(t *testing.T) {
	m := New(BuildSnapshot(sampleFlat(), "p", "n", nil, 1, 1, "2026-07-31T00:00:00Z", nil))
	m.AddImage(ImageRecord{VariantIndex: 0, Filename: "img_000.png", ActualSeed: 42})
	m.AddImage(ImageRecord{VariantIndex: 1, Filename: "img_001.png", ActualSeed: 43})

	require.Len(t, m.Images, 2)
	assert.Equal(t, "img_000.png", m.Images[0].Filename)
	assert.Equal(t, "img_001.png", m.Images[1].Filename)
}

func TestManifest_WriteJSONRoundTrips(t *testing.T) {
	m := New(BuildSnapshot(sampleFlat(), "p", "n", sampleAxes(), 2, 2, "2026-07-31T00:00:00Z", nil))
	m.AddImage(ImageRecord{VariantIndex: 0, Filename: "img_000.png", ActualSeed: 42, AppliedVariations: map[string]string{"Expression": "sad"}})

	var buf bytes.Buffer
	require.NoError(t, m.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "snapshot")
	assert.Contains(t, decoded, "images")
}
