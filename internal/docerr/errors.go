// Package docerr defines the typed error hierarchy used across the
// template resolution pipeline. Every error carries a path chain (file,
// YAML path, line/column when known) and a one-line explanation, modeled
// on the teacher's console.CompilerError and yaml_error.go line-adjustment
// helpers. Categories match spec.md §7's error table.
package docerr

import "fmt"

// Category is one of the fatal (or, for RuntimeInfo, recoverable) error
// classes spec.md §7 enumerates.
type Category string

const (
	CategoryIO                    Category = "io"
	CategoryParse                 Category = "parse"
	CategoryCycle                 Category = "cycle"
	CategoryImportConflict        Category = "import_conflict"
	CategorySelector              Category = "selector"
	CategoryUnresolvedPlaceholder Category = "unresolved_placeholder"
	CategoryRuntimeInfo           Category = "runtime_info"
	CategoryImageFailure          Category = "image_failure"
	CategorySchema                Category = "schema"
)

// Error is the engine's structured error type. File and YAMLPath locate the
// failure; Line/Column are 1-based and zero when unknown; Candidates lists
// valid alternatives (e.g. Levenshtein-near names, valid selector keys).
type Error struct {
	Category   Category
	File       string
	YAMLPath   string
	Line       int
	Column     int
	Message    string
	Hint       string
	Candidates []string
	cause      error
}

func (e *Error) Error() string {
	loc := e.File
	if e.YAMLPath != "" {
		loc = fmt.Sprintf("%s@%s", loc, e.YAMLPath)
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if loc == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Wrap attaches an underlying cause to a freshly built Error.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// New builds a bare Error of the given category and message.
func New(category Category, message string) *Error {
	return &Error{Category: category, Message: message}
}

// WithLocation returns a copy of e with location fields set.
func (e *Error) WithLocation(file, yamlPath string, line, column int) *Error {
	cp := *e
	cp.File = file
	cp.YAMLPath = yamlPath
	cp.Line = line
	cp.Column = column
	return &cp
}

// WithCandidates returns a copy of e with suggested alternatives attached.
func (e *Error) WithCandidates(candidates []string) *Error {
	cp := *e
	cp.Candidates = candidates
	if len(candidates) > 0 {
		cp.Hint = "did you mean: " + joinCandidates(candidates)
	}
	return &cp
}

func joinCandidates(candidates []string) string {
	out := ""
	for i, c := range candidates {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
