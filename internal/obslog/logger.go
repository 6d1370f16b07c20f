// Package obslog provides a minimal namespaced logger used across the
// engine packages. It mirrors the teacher's debug-gated logger: silent by
// default, emitting to stderr only when SDTMPL_DEBUG is set, so that a
// library consumer never sees log noise unless it asks for it.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	debugOnce    sync.Once
	debugEnabled bool
)

func isDebug() bool {
	debugOnce.Do(func() {
		debugEnabled = os.Getenv("SDTMPL_DEBUG") != ""
	})
	return debugEnabled
}

// Logger prefixes every line with its namespace, e.g. "[loader] ...".
type Logger struct {
	namespace string
	out       io.Writer
}

// New returns a Logger namespaced to the given component, e.g. "loader".
func New(namespace string) *Logger {
	return &Logger{namespace: namespace, out: os.Stderr}
}

// Printf writes a debug-level line when SDTMPL_DEBUG is set; otherwise a no-op.
func (l *Logger) Printf(format string, args ...any) {
	if !isDebug() {
		return
	}
	fmt.Fprintf(l.out, "[%s] %s\n", l.namespace, fmt.Sprintf(format, args...))
}

// Print is the no-args form of Printf.
func (l *Logger) Print(msg string) {
	l.Printf("%s", msg)
}
