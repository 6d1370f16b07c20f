// Package substitute implements spec.md §4.R, steps 2-4: once chunks are
// already expanded (pkg/chunkresolve) and axis values are chosen
// (pkg/enumerate), replace every remaining `{Name}` with its bound text,
// normalize whitespace and punctuation, and reject any surviving `{…}` as
// an unresolved placeholder. Grounded on internal/placeholder's AST walk
// rather than ad-hoc string replace (spec.md §9).
package substitute

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sdtmpl/sdtmpl/internal/docerr"
	"github.com/sdtmpl/sdtmpl/internal/placeholder"
)

// Substitute replaces every `{Name}` / `{Name[selector]}` occurrence in
// body with bindings[Name+"\x00"+selector], matching pkg/enumerate's Key
// convention, then normalizes the result. Any placeholder absent from
// bindings is a docerr.CategoryUnresolvedPlaceholder error naming the
// offending token.
func Substitute(body string, bindings map[string]string) (string, error) {
	nodes, err := placeholder.Parse(body)
	if err != nil {
		return "", docerr.New(docerr.CategoryUnresolvedPlaceholder, err.Error())
	}

	var sb strings.Builder
	for _, n := range nodes {
		if n.Kind != placeholder.KindPlaceholder {
			sb.WriteString(n.Text)
			continue
		}
		key := n.Placeholder.Name + "\x00" + n.Placeholder.Selector
		text, ok := bindings[key]
		if !ok {
			return "", docerr.New(docerr.CategoryUnresolvedPlaceholder,
				fmt.Sprintf("unresolved placeholder %q", reconstructToken(n.Placeholder)))
		}
		sb.WriteString(text)
	}

	return Normalize(sb.String()), nil
}

var (
	whitespaceRun  = regexp.MustCompile(`[ \t]+`)
	commaRun       = regexp.MustCompile(`\s*,\s*,+`)
	leadingPunct   = regexp.MustCompile(`^[,\s]+`)
	trailingPunct  = regexp.MustCompile(`[,\s]+$`)
	commaSpacingRe = regexp.MustCompile(`\s*,\s*`)
)

// Normalize collapses whitespace runs, collapses repeated commas (", ,"
// sequences left behind by an empty substitution) into one, and trims
// leading/trailing punctuation and whitespace. Applied identically to
// positive and negative bodies (spec.md §4.R).
func Normalize(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	for commaRun.MatchString(s) {
		s = commaRun.ReplaceAllString(s, ",")
	}
	s = commaSpacingRe.ReplaceAllString(s, ", ")
	s = leadingPunct.ReplaceAllString(s, "")
	s = trailingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func reconstructToken(p placeholder.Placeholder) string {
	if p.Selector != "" {
		return "{" + p.Name + "[" + p.Selector + "]}"
	}
	return "{" + p.Name + "}"
}
