//go:build !integration

package enumerate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
	"github.com/sdtmpl/sdtmpl/pkg/importresolve"
)

func resolvedSet(name string, keys ...string) *importresolve.Resolved {
	vs := &docmodel.VariationSet{Source: name}
	for _, k := range keys {
		vs.Variations = append(vs.Variations, docmodel.Variation{Key: k, Text: k})
	}
	return &importresolve.Resolved{Name: name, Set: vs}
}

func TestDiscover_SkipsReservedAndKeepsFixedSingletons(t *testing.T) {
	imports := map[string]*importresolve.Resolved{
		"Expression": resolvedSet("Expression", "sad", "happy"),
		"Pose":       resolvedSet("Pose", "standing"),
	}
	body := "portrait, {Expression}, {Pose}, {prompt}"

	got, err := Discover(imports, 1, body)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsAxis())
	assert.False(t, got[1].IsAxis())
}

func TestOrderAxes_AscendingWeightThenPosition(t *testing.T) {
	w1, w5 := uint32(1), uint32(5)
	axes := []Placeholder{
		{Key: "B", Position: 0, Weight: &w5, Values: []docmodel.Variation{{Key: "a"}, {Key: "b"}}},
		{Key: "A", Position: 1, Weight: &w1, Values: []docmodel.Variation{{Key: "a"}, {Key: "b"}}},
		{Key: "C", Position: 2, Values: []docmodel.Variation{{Key: "a"}, {Key: "b"}}},
	}
	ordered := OrderAxes(axes)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{ordered[0].Key, ordered[1].Key, ordered[2].Key})
}

func TestCombinatorial_ProducesFullCartesianProductInOrder(t *testing.T) {
	axes := []Placeholder{
		{Key: "Outer", Values: []docmodel.Variation{{Key: "o1"}, {Key: "o2"}}},
		{Key: "Inner", Values: []docmodel.Variation{{Key: "i1"}, {Key: "i2"}, {Key: "i3"}}},
	}
	sel, err := Combinatorial(axes, 0)
	require.NoError(t, err)
	require.Len(t, sel, 6)

	assert.Equal(t, "o1", sel[0].Choices["Outer"].Key)
	assert.Equal(t, "i1", sel[0].Choices["Inner"].Key)
	assert.Equal(t, "o1", sel[1].Choices["Outer"].Key)
	assert.Equal(t, "i2", sel[1].Choices["Inner"].Key)
	assert.Equal(t, "o1", sel[2].Choices["Outer"].Key)
	assert.Equal(t, "i3", sel[2].Choices["Inner"].Key)
	assert.Equal(t, "o2", sel[3].Choices["Outer"].Key)
	assert.Equal(t, "i1", sel[3].Choices["Inner"].Key)
}

func TestCombinatorial_RespectsMaxImages(t *testing.T) {
	axes := []Placeholder{
		{Key: "A", Values: []docmodel.Variation{{Key: "1"}, {Key: "2"}, {Key: "3"}}},
	}
	sel, err := Combinatorial(axes, 2)
	require.NoError(t, err)
	assert.Len(t, sel, 2)
}

func TestRandom_DeterministicForSameSeed(t *testing.T) {
	axes := []Placeholder{
		{Key: "A", Values: []docmodel.Variation{{Key: "1"}, {Key: "2"}, {Key: "3"}, {Key: "4"}}},
	}
	a, err := Random(axes, 2, 99)
	require.NoError(t, err)
	b, err := Random(axes, 2, 99)
	require.NoError(t, err)
	assert.Equal(t, a[0].Choices["A"].Key, b[0].Choices["A"].Key)
	assert.Equal(t, a[1].Choices["A"].Key, b[1].Choices["A"].Key)
}

func TestRandom_MaxImagesAtOrAboveTotalYieldsFullPermutation(t *testing.T) {
	axes := []Placeholder{
		{Key: "A", Values: []docmodel.Variation{{Key: "1"}, {Key: "2"}, {Key: "3"}}},
	}
	sel, err := Random(axes, 99, 1)
	require.NoError(t, err)
	assert.Len(t, sel, 3)
}
