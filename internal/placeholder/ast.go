// Package placeholder parses the `{Name}`, `{Name[selector]}`, and
// `{ChunkName with field=Source[selector], …}` grammar into a small AST,
// per spec.md §9 ("do not do substitution with ad-hoc string replace").
// Both the chunk resolver and the substitutor walk this AST rather than
// scanning bodies by hand, so nested chunk fields remain resolvable.
package placeholder

import (
	"fmt"
	"strings"
)

// NodeKind distinguishes literal text from a placeholder occurrence.
type NodeKind int

const (
	KindText NodeKind = iota
	KindPlaceholder
)

// Binding is one `field=Source[selector]` clause in a `with` list.
type Binding struct {
	Field    string
	Source   string
	Selector string // raw selector text, e.g. "keys:happy,neutral"; empty if none
}

// Placeholder is a single `{Name}` / `{Name[selector]}` / `{Name with …}` occurrence.
type Placeholder struct {
	Name     string
	Selector string // set only for the bare/selector form
	With     []Binding
}

// Node is one element of a parsed body: either literal text or a placeholder.
type Node struct {
	Kind        NodeKind
	Text        string
	Placeholder Placeholder
}

// Parse splits body into a sequence of text and placeholder nodes.
// It does not resolve names; that is the caller's job.
func Parse(body string) ([]Node, error) {
	var nodes []Node
	var textBuf strings.Builder

	runes := []rune(body)
	i := 0
	for i < len(runes) {
		if runes[i] != '{' {
			textBuf.WriteRune(runes[i])
			i++
			continue
		}

		end := indexMatchingBrace(runes, i)
		if end == -1 {
			return nil, fmt.Errorf("unterminated placeholder starting at offset %d", i)
		}

		if textBuf.Len() > 0 {
			nodes = append(nodes, Node{Kind: KindText, Text: textBuf.String()})
			textBuf.Reset()
		}

		inner := string(runes[i+1 : end])
		ph, err := parsePlaceholderBody(inner)
		if err != nil {
			return nil, fmt.Errorf("invalid placeholder %q: %w", "{"+inner+"}", err)
		}
		nodes = append(nodes, Node{Kind: KindPlaceholder, Placeholder: ph})
		i = end + 1
	}

	if textBuf.Len() > 0 {
		nodes = append(nodes, Node{Kind: KindText, Text: textBuf.String()})
	}

	return nodes, nil
}

// indexMatchingBrace finds the index of the first '}' after the '{' at
// start. '[' ']' pairs are not tracked, so a '}' inside a selector would
// end the placeholder; selectors never contain braces.
func indexMatchingBrace(runes []rune, start int) int {
	for j := start + 1; j < len(runes); j++ {
		if runes[j] == '}' {
			return j
		}
	}
	return -1
}

// parsePlaceholderBody parses the text between `{` and `}`.
func parsePlaceholderBody(inner string) (Placeholder, error) {
	if idx := findWithKeyword(inner); idx != -1 {
		name := strings.TrimSpace(inner[:idx])
		rest := inner[idx+len(" with "):]
		bindings, err := parseBindings(rest)
		if err != nil {
			return Placeholder{}, err
		}
		if name == "" {
			return Placeholder{}, fmt.Errorf("missing chunk name before 'with'")
		}
		return Placeholder{Name: name, With: bindings}, nil
	}

	name, selector, err := splitNameSelector(inner)
	if err != nil {
		return Placeholder{}, err
	}
	return Placeholder{Name: name, Selector: selector}, nil
}

// findWithKeyword locates the top-level " with " separator, ignoring any
// occurrence inside a [...] selector.
func findWithKeyword(s string) int {
	depth := 0
	for i := 0; i+6 <= len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && s[i:i+6] == " with " {
			return i
		}
	}
	return -1
}

// splitNameSelector splits "Name" or "Name[selector]" into its parts.
func splitNameSelector(s string) (name, selector string, err error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open == -1 {
		if s == "" {
			return "", "", fmt.Errorf("empty placeholder name")
		}
		return s, "", nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", "", fmt.Errorf("unterminated selector in %q", s)
	}
	name = strings.TrimSpace(s[:open])
	selector = s[open+1 : len(s)-1]
	if name == "" {
		return "", "", fmt.Errorf("empty placeholder name in %q", s)
	}
	return name, selector, nil
}

// parseBindings parses a comma-separated `field=Source[selector]` list.
// Commas inside a [...] selector do not split bindings.
func parseBindings(s string) ([]Binding, error) {
	parts := splitTopLevelCommas(s)
	bindings := make([]Binding, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq == -1 {
			return nil, fmt.Errorf("binding %q missing '='", part)
		}
		field := strings.TrimSpace(part[:eq])
		value := strings.TrimSpace(part[eq+1:])
		source, selector, err := splitNameSelector(value)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", part, err)
		}
		bindings = append(bindings, Binding{Field: field, Source: source, Selector: selector})
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("'with' clause has no bindings")
	}
	return bindings, nil
}

// splitTopLevelCommas splits on ',' but not inside a [...] span.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
