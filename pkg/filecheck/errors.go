package filecheck

import (
	"fmt"
	"strings"
)

// Note points at a location in the input.
type Note struct {
	File    string
	Line    int
	Col     int
	Message string
	Source  string
}

// Error is a check failure or a malformed check file.
type Error struct {
	File    string
	Line    int
	Col     int
	Message string

	// Source is the offending check line.
	Source string

	// Note optionally points at the relevant place in the input.
	Note *Note
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: error: %s\n", e.File, e.Line, e.Col, e.Message)
	writeCaret(&b, e.Source, e.Col)
	if n := e.Note; n != nil {
		fmt.Fprintf(&b, "%s:%d:%d: note: %s\n", n.File, n.Line, n.Col, n.Message)
		writeCaret(&b, n.Source, n.Col)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeCaret(b *strings.Builder, source string, col int) {
	b.WriteString(source)
	b.WriteByte('\n')
	if col > 1 {
		b.WriteString(strings.Repeat(" ", col-1))
	}
	b.WriteString("^\n")
}

func (d *Directive) errorf(format string, args ...any) *Error {
	return &Error{
		File:    d.File,
		Line:    d.Line,
		Col:     d.Col,
		Message: fmt.Sprintf(format, args...),
		Source:  d.Source,
	}
}
