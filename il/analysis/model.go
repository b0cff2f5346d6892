// Package analysis turns a parse tree into a flat, ordered stream of scoped
// tokens and diagnostics.
//
// The pipeline has two passes: Flatten walks the tree once and emits the
// semantically relevant nodes in pre-order; Annotator.Annotate scans that
// stream left to right carrying a pending docstring, an optional active
// local scope and the set of names declared so far.
//
// All positions in this package are 0-based, matching the editor protocol.
package analysis

import (
	"fmt"

	"github.com/teranos/ilsp/il/syntax"
)

// Position is a 0-based line/character pair in protocol coordinates
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

// Before reports whether p is strictly before q
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Character < q.Character)
}

// After reports whether p is strictly after q
func (p Position) After(q Position) bool {
	return q.Before(p)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range delimits a span of source text; End is exclusive by convention
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// Contains reports whether p lies within r, bounds included
func (r Range) Contains(p Position) bool {
	return !p.Before(r.Start) && !p.After(r.End)
}

// StrictlyContains reports whether p lies inside r: on an interior line, or
// on a boundary line strictly past the corresponding edge.
func (r Range) StrictlyContains(p Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character <= r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character >= r.End.Character {
		return false
	}
	return true
}

// SingleLine reports whether the range starts and ends on the same line
func (r Range) SingleLine() bool {
	return r.Start.Line == r.End.Line
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// TokenKind classifies a token. The set is closed; presentation formats map
// it with pure functions rather than methods on per-kind types.
type TokenKind int

const (
	VariableAssignment TokenKind = iota
	VariableUse
	LetBlock
	Function
	Struct
)

var tokenKindNames = [...]string{
	VariableAssignment: "VariableAssignment",
	VariableUse:        "VariableUse",
	LetBlock:           "LetBlock",
	Function:           "Function",
	Struct:             "Struct",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "Unknown"
}

// IsDeclaration reports whether tokens of this kind introduce a name
func (k TokenKind) IsDeclaration() bool {
	switch k {
	case VariableAssignment, Function, Struct:
		return true
	}
	return false
}

// ScopeKind distinguishes the two visibility shapes
type ScopeKind int

const (
	// ScopeGlobal is visible at any position strictly after From
	ScopeGlobal ScopeKind = iota
	// ScopeLocal is visible only at positions strictly inside Range
	ScopeLocal
)

// Scope describes where a token is visible
type Scope struct {
	Kind  ScopeKind `json:"kind" yaml:"kind"`
	From  Position  `json:"from" yaml:"from"`
	Range Range     `json:"range" yaml:"range"`
}

// Global returns a scope visible strictly after from
func Global(from Position) Scope {
	return Scope{Kind: ScopeGlobal, From: from}
}

// Local returns a scope visible strictly inside r
func Local(r Range) Scope {
	return Scope{Kind: ScopeLocal, Range: r}
}

// Label is the user-facing scope name
func (s Scope) Label() string {
	if s.Kind == ScopeLocal {
		return "local"
	}
	return "global"
}

// Visible applies the scope containment rule at position p
func (s Scope) Visible(p Position) bool {
	switch s.Kind {
	case ScopeGlobal:
		return p.After(s.From)
	case ScopeLocal:
		return s.Range.StrictlyContains(p)
	}
	return false
}

// Token is one unit of extracted knowledge about a file
type Token struct {
	Kind  TokenKind `json:"kind" yaml:"kind"`
	Scope Scope     `json:"scope" yaml:"scope"`
	Name  string    `json:"name" yaml:"name"`
	// Info is the raw source text of the defining form, empty for uses
	Info string `json:"info,omitempty" yaml:"info,omitempty"`
	// Documentation is the docstring attached at creation time
	Documentation string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	// Encloses is set only for scope-opening tokens
	Encloses *Range `json:"encloses,omitempty" yaml:"encloses,omitempty"`
	// Place is the range of the token's own occurrence
	Place Range `json:"place" yaml:"place"`
	// Selection is the range of the identifier itself
	Selection Range `json:"selection" yaml:"selection"`
}

// Severity follows the protocol's numbering
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return "unknown"
}

// DiagnosticSource tags every diagnostic produced by ilsp
const DiagnosticSource = "ilsp"

// Diagnostic codes
const (
	CodeUseBeforeDeclaration = "use-before-declaration"
	CodeSyntax               = "syntax-error"
	CodeUnreadable           = "unreadable-file"
)

// Diagnostic is a problem found in a file
type Diagnostic struct {
	Range    Range    `json:"range" yaml:"range"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Source   string   `json:"source" yaml:"source"`
	Code     string   `json:"code" yaml:"code"`
}

// Result is the output of one analysis pass
type Result struct {
	Tokens      []Token      `json:"tokens" yaml:"tokens"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	// Columns maps the rune columns above to UTF-16 columns
	Columns ColumnMap `json:"-" yaml:"-"`
}

// HasErrors reports whether any diagnostic has error severity
func (r Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FromSyntax converts a 1-based parser position to protocol coordinates
func FromSyntax(p syntax.Position) Position {
	return Position{Line: p.Line - 1, Character: p.Column - 1}
}

// RangeOf returns the protocol range of a parse node
func RangeOf(n *syntax.Node) Range {
	return Range{Start: FromSyntax(n.Start), End: FromSyntax(n.End)}
}

// SyntaxDiagnostic reports a parser rejection as an empty range at the
// reported location
func SyntaxDiagnostic(err *syntax.SyntaxError) Diagnostic {
	at := Position{Line: err.Line - 1, Character: err.Column - 1}
	return Diagnostic{
		Range:    Range{Start: at, End: at},
		Severity: SeverityError,
		Message:  "syntax error: " + err.Message,
		Source:   DiagnosticSource,
		Code:     CodeSyntax,
	}
}

// UnreadableDiagnostic reports a file that exists but could not be read
func UnreadableDiagnostic(err error) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Message:  "file could not be read: " + err.Error(),
		Source:   DiagnosticSource,
		Code:     CodeUnreadable,
	}
}
