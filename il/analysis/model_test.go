package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/ilsp/il/syntax"
)

func TestRange_Containment(t *testing.T) {
	r := rng(1, 4, 3, 2)

	tests := []struct {
		name     string
		p        Position
		contains bool
		strict   bool
	}{
		{"before start line", Position{0, 9}, false, false},
		{"start edge", Position{1, 4}, true, false},
		{"past start edge", Position{1, 5}, true, true},
		{"before start edge", Position{1, 3}, false, false},
		{"interior line", Position{2, 0}, true, true},
		{"before end edge", Position{3, 1}, true, true},
		{"end edge", Position{3, 2}, true, false},
		{"after end", Position{3, 3}, false, false},
		{"after end line", Position{4, 0}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.contains, r.Contains(tt.p))
			assert.Equal(t, tt.strict, r.StrictlyContains(tt.p))
		})
	}
}

func TestScope_Labels(t *testing.T) {
	assert.Equal(t, "global", Global(Position{}).Label())
	assert.Equal(t, "local", Local(Range{}).Label())
}

func TestTokenKind(t *testing.T) {
	assert.True(t, VariableAssignment.IsDeclaration())
	assert.True(t, Function.IsDeclaration())
	assert.True(t, Struct.IsDeclaration())
	assert.False(t, VariableUse.IsDeclaration())
	assert.False(t, LetBlock.IsDeclaration())

	assert.Equal(t, "LetBlock", LetBlock.String())
	assert.Equal(t, "Unknown", TokenKind(42).String())
}

func TestFromSyntax(t *testing.T) {
	assert.Equal(t, Position{Line: 0, Character: 0}, FromSyntax(syntax.Position{Line: 1, Column: 1}))
	assert.Equal(t, Position{Line: 4, Character: 9}, FromSyntax(syntax.Position{Line: 5, Column: 10, Offset: 77}))
}

func TestUnreadableDiagnostic(t *testing.T) {
	d := UnreadableDiagnostic(errors.New("permission denied"))
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, Range{}, d.Range)
	assert.Equal(t, "file could not be read: permission denied", d.Message)
	assert.Equal(t, CodeUnreadable, d.Code)
	assert.False(t, Result{Diagnostics: []Diagnostic{d}}.HasErrors())
}
