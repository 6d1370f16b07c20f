//go:build !integration

package enumerate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdtmpl/sdtmpl/internal/docmodel"
)

func TestBuildSummary_OneRowPerAxis(t *testing.T) {
	axes := []Placeholder{
		{Name: "Expression", Values: []docmodel.Variation{{Key: "sad"}, {Key: "happy"}}},
		{Name: "Pose", Values: []docmodel.Variation{{Key: "standing"}, {Key: "sitting"}, {Key: "kneeling"}}},
	}
	summary := BuildSummary(axes, 6)

	assert.Len(t, summary.Rows, 2)
	assert.Equal(t, []string{"Expression", "-", "2"}, summary.Rows[0])
	assert.Equal(t, []string{"Pose", "-", "3"}, summary.Rows[1])
	assert.Contains(t, summary.Total, "6 total")
}

func TestSummaryTable_RenderPlainContainsAllRows(t *testing.T) {
	axes := []Placeholder{
		{Name: "Expression", Values: []docmodel.Variation{{Key: "sad"}, {Key: "happy"}}},
	}
	summary := BuildSummary(axes, 2)
	out := summary.Render(false)

	assert.Contains(t, out, "Expression")
	assert.Contains(t, out, "2 total combination(s)")
}
