//go:build !integration

package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtmpl/sdtmpl/pkg/manifest"
)

type fakeClient struct{ calls int }

func (f *fakeClient) Generate(v Variant) ([]byte, int64, error) {
	f.calls++
	return []byte("fake-image"), v.SeedHint, nil
}

type fakeWriter struct{ written map[string][]byte }

func (f *fakeWriter) Write(filename string, image []byte) error {
	if f.written == nil {
		f.written = make(map[string][]byte)
	}
	f.written[filename] = image
	return nil
}

func TestRunBatch_RecordsOneImagePerVariant(t *testing.T) {
	run, err := LoadAndResolve("testdata/portrait.prompt.yaml", Overrides{})
	require.NoError(t, err)

	client := &fakeClient{}
	writer := &fakeWriter{}
	m := manifest.New(manifest.Snapshot{})

	err = RunBatch(run, client, writer, func(v Variant) string {
		return fmt.Sprintf("img_%03d.png", v.Index)
	}, m)
	require.NoError(t, err)

	assert.Equal(t, run.Len(), client.calls)
	require.Len(t, m.Images, run.Len())
	assert.Equal(t, "img_000.png", m.Images[0].Filename)
	assert.Contains(t, writer.written, "img_000.png")
}
