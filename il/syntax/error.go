package syntax

import (
	"fmt"

	"github.com/pterm/pterm"
)

// SyntaxError is the single location at which the parser rejected a file.
// Line and Column are 1-based.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// Error implements error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// FormatTerminal renders the error with the offending source line and a caret
func (e *SyntaxError) FormatTerminal(path string, source string) string {
	msg := fmt.Sprintf("%s %s", pterm.Red("syntax error:"), e.Message)
	loc := pterm.LightCyan(fmt.Sprintf("%s:%d:%d", path, e.Line, e.Column))

	line := sourceLine(source, e.Line)
	if line == "" {
		return fmt.Sprintf("%s\n  %s", loc, msg)
	}
	caret := fmt.Sprintf("%*s", e.Column, "^")
	return fmt.Sprintf("%s\n  %s\n  %s\n  %s", loc, msg, line, pterm.Yellow(caret))
}

func newSyntaxError(at Position, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{
		Line:    at.Line,
		Column:  at.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

// sourceLine returns the 1-based line n of source without its terminator
func sourceLine(source string, n int) string {
	line := 1
	start := 0
	for i := 0; i < len(source); i++ {
		if source[i] != '\n' {
			continue
		}
		if line == n {
			return source[start:i]
		}
		line++
		start = i + 1
	}
	if line == n {
		return source[start:]
	}
	return ""
}
