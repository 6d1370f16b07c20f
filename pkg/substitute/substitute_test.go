//go:build !integration

package substitute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute_ReplacesBoundPlaceholders(t *testing.T) {
	bindings := map[string]string{
		"Expression\x00": "smiling",
		"Pose\x00":       "standing",
	}
	out, err := Substitute("portrait, {Expression}, {Pose}", bindings)
	require.NoError(t, err)
	assert.Equal(t, "portrait, smiling, standing", out)
}

func TestSubstitute_UnresolvedPlaceholderIsError(t *testing.T) {
	_, err := Substitute("portrait, {Missing}", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestSubstitute_MatchesSelectorScopedKey(t *testing.T) {
	bindings := map[string]string{"Expression\x00keys:sad": "crying"}
	out, err := Substitute("{Expression[keys:sad]}", bindings)
	require.NoError(t, err)
	assert.Equal(t, "crying", out)
}

func TestNormalize_CollapsesDoubleCommaFromEmptySubstitution(t *testing.T) {
	out := Normalize("portrait, , blank stare, ")
	assert.Equal(t, "portrait, blank stare", out)
}

func TestNormalize_TrimsLeadingAndTrailingPunctuation(t *testing.T) {
	out := Normalize(", portrait, smiling ,")
	assert.Equal(t, "portrait, smiling", out)
}

func TestNormalize_CollapsesWhitespaceRuns(t *testing.T) {
	out := Normalize("portrait    smiling")
	assert.Equal(t, "portrait smiling", out)
}

func TestNormalize_IsIdempotent(t *testing.T) {
	once := Normalize("portrait, smiling, dynamic pose, , front view,")
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}
