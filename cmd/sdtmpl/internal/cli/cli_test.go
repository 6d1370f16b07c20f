//go:build !integration

package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolveCommand_PrintsTotalCombinations(t *testing.T) {
	out, err := run(t, "resolve", "testdata/portrait.prompt.yaml", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "4 total combination(s)")
	assert.Contains(t, out, "Expression")
}

func TestValidateCommand_ReportsVariantCount(t *testing.T) {
	out, err := run(t, "validate", "testdata/portrait.prompt.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "4 variant(s)")
}

func TestPreviewCommand_RespectsLimit(t *testing.T) {
	out, err := run(t, "preview", "testdata/portrait.prompt.yaml", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(out))
}

func TestResolveCommand_ErrorsOnMissingFile(t *testing.T) {
	_, err := run(t, "resolve", "testdata/does-not-exist.prompt.yaml")
	require.Error(t, err)
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
