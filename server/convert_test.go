package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/il/query"
)

func TestPathFromURI(t *testing.T) {
	path, err := pathFromURI("file:///home/user/src/main.il")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/src/main.il", path)

	path, err = pathFromURI("file:///home/user/my%20project/a.il")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/my project/a.il", path)

	_, err = pathFromURI("untitled:Untitled-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	assert.Equal(t, "file:///tmp/a.il", uriFromPath("/tmp/a.il"))
	roundTrip, err := pathFromURI(uriFromPath("/tmp/with space/b.il"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/with space/b.il", roundTrip)
}

func TestPositionConversion(t *testing.T) {
	assert.Equal(t, analysis.Position{Line: 3, Character: 7}, toPosition(protocol.Position{Line: 3, Character: 7}))
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, fromPosition(analysis.Position{Line: -1, Character: -5}), "negative values clamp")
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 2},
		End:   protocol.Position{Line: 1, Character: 9},
	}, fromRange(analysis.Range{
		Start: analysis.Position{Line: 1, Character: 2},
		End:   analysis.Position{Line: 1, Character: 9},
	}))
}

func TestToDiagnostics(t *testing.T) {
	out := toDiagnostics(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)

	out = toDiagnostics([]analysis.Diagnostic{
		{
			Range:    analysis.Range{End: analysis.Position{Character: 3}},
			Severity: analysis.SeverityError,
			Message:  `"foo" used before declaration`,
			Source:   analysis.DiagnosticSource,
			Code:     analysis.CodeUseBeforeDeclaration,
		},
		{
			Severity: analysis.SeverityWarning,
			Message:  "file could not be read: boom",
			Source:   analysis.DiagnosticSource,
		},
	})
	require.Len(t, out, 2)
	assert.Equal(t, protocol.DiagnosticSeverityError, *out[0].Severity)
	assert.Equal(t, "ilsp", *out[0].Source)
	require.NotNil(t, out[0].Code)
	assert.Equal(t, "use-before-declaration", out[0].Code.Value)
	assert.Equal(t, protocol.UInteger(3), out[0].Range.End.Character)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *out[1].Severity)
	assert.Nil(t, out[1].Code)
}

func TestKindMappings(t *testing.T) {
	tests := []struct {
		kind       analysis.TokenKind
		completion protocol.CompletionItemKind
		symbol     protocol.SymbolKind
	}{
		{analysis.VariableAssignment, protocol.CompletionItemKindVariable, protocol.SymbolKindVariable},
		{analysis.VariableUse, protocol.CompletionItemKindVariable, protocol.SymbolKindVariable},
		{analysis.LetBlock, protocol.CompletionItemKindKeyword, protocol.SymbolKindNamespace},
		{analysis.Function, protocol.CompletionItemKindFunction, protocol.SymbolKindFunction},
		{analysis.Struct, protocol.CompletionItemKindStruct, protocol.SymbolKindStruct},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.completion, completionKind(tt.kind))
			assert.Equal(t, tt.symbol, symbolKind(tt.kind))
		})
	}
}

func TestToCompletionItems(t *testing.T) {
	items := toCompletionItems([]query.Suggestion{
		{Name: "x", Kind: analysis.VariableAssignment, Scope: "global", Documentation: "the x", Detail: "(x = 1)"},
		{Name: "f", Kind: analysis.Function, Scope: "global"},
		{Name: "a", Kind: analysis.VariableAssignment, Scope: "local", Detail: "(a 1)"},
	})
	require.Len(t, items, 3)

	assert.Equal(t, "x", items[0].Label)
	require.NotNil(t, items[0].Detail)
	assert.Equal(t, "global · (x = 1)", *items[0].Detail)
	doc, ok := items[0].Documentation.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Equal(t, "*global*\n\nthe x", doc.Value)

	assert.Equal(t, protocol.CompletionItemKindFunction, *items[1].Kind)
	require.NotNil(t, items[1].Detail)
	assert.Equal(t, "global", *items[1].Detail)
	assert.Nil(t, items[1].Documentation)

	require.NotNil(t, items[2].Detail)
	assert.Equal(t, "local · (a 1)", *items[2].Detail)
	assert.Nil(t, items[2].Documentation)
}

func TestToDocumentSymbols(t *testing.T) {
	body := analysis.Range{End: analysis.Position{Line: 2, Character: 1}}
	symbols := toDocumentSymbols([]query.Symbol{
		{
			Name:   "let@1",
			Kind:   analysis.LetBlock,
			Detail: "(let ((a 1))\n  a)",
			Range:  body,
			Children: []query.Symbol{
				{Name: "a", Kind: analysis.VariableAssignment, Detail: "(a 1)"},
			},
		},
	})
	require.Len(t, symbols, 1)
	assert.Equal(t, protocol.SymbolKindNamespace, symbols[0].Kind)
	assert.Equal(t, "(let ((a 1)) ...", *symbols[0].Detail)
	assert.Equal(t, protocol.UInteger(2), symbols[0].Range.End.Line)
	require.Len(t, symbols[0].Children, 1)
	assert.Equal(t, "a", symbols[0].Children[0].Name)
	assert.Nil(t, symbols[0].Children[0].Children)
}
