package enumerate

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SummaryTable mirrors the teacher's console.TableConfig shape (headers,
// rows, optional title and total row), adapted here to a fixed axis-report
// column layout instead of a generic table.
type SummaryTable struct {
	Title string
	Rows  [][]string // name, weight, value count
	Total string
}

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryTotalStyle  = lipgloss.NewStyle().Bold(true)
	summaryBorder      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// BuildSummary turns a set of ordered axes plus the combinatorial total
// into a SummaryTable a driver can render before starting generation.
func BuildSummary(axes []Placeholder, total uint64) SummaryTable {
	rows := make([][]string, 0, len(axes))
	for _, a := range axes {
		weight := "-"
		if a.Weight != nil {
			weight = fmt.Sprintf("%d", *a.Weight)
		}
		rows = append(rows, []string{a.Name, weight, fmt.Sprintf("%d", len(a.Values))})
	}
	return SummaryTable{
		Title: "loop axes",
		Rows:  rows,
		Total: fmt.Sprintf("%d total combination(s)", total),
	}
}

// Render renders t as a bordered, column-aligned table. color disables
// lipgloss styling for non-TTY output (cmd/sdtmpl detects this via
// golang.org/x/term before calling Render).
func (t SummaryTable) Render(color bool) string {
	headers := []string{"axis", "weight", "values"}
	widths := columnWidths(headers, t.Rows)

	var b strings.Builder
	b.WriteString(styledTitle(t.Title, color))
	b.WriteString("\n")
	b.WriteString(styledRow(headers, widths, color, true))
	for _, row := range t.Rows {
		b.WriteString(styledRow(row, widths, false, false))
	}
	b.WriteString(styledTotal(t.Total, color))

	body := b.String()
	if !color {
		return body
	}
	return summaryBorder.Render(body)
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func styledRow(cells []string, widths []int, color, header bool) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		padded[i] = fmt.Sprintf("%-*s", w, c)
	}
	line := strings.Join(padded, "  ") + "\n"
	if !color {
		return line
	}
	if header {
		return summaryHeaderStyle.Render(line)
	}
	return line
}

func styledTitle(title string, color bool) string {
	if !color {
		return title
	}
	return summaryHeaderStyle.Render(title)
}

func styledTotal(total string, color bool) string {
	if !color {
		return total
	}
	return summaryTotalStyle.Render(total)
}
