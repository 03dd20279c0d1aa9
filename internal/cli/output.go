package cli

import (
	"fmt"
	"io"
)

// Output helpers for stdout and stderr. Write errors are ignored.

// Writef formats to w.
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes args to w followed by a newline.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes s to w unchanged, for text such as a rendered diff.
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}
