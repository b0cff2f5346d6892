package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(nodes []*Node) []NodeKind {
	out := make([]NodeKind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

func TestParse_Assignment(t *testing.T) {
	root, err := Parse("(x = 5)")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	assign := root.Children[0]
	assert.Equal(t, NodeAssign, assign.Kind)
	assert.Equal(t, "(x = 5)", assign.Text)
	assert.Equal(t, Position{Line: 1, Column: 1, Offset: 0}, assign.Start)
	assert.Equal(t, Position{Line: 1, Column: 8, Offset: 7}, assign.End)
	assert.Equal(t, []NodeKind{NodeSymbol, NodeOperator, NodeNumber}, kinds(assign.Children))
	assert.Equal(t, "x", assign.Head().Text)
}

func TestParse_ListIsNotAssignment(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want NodeKind
	}{
		{"plain list", "(foo)", NodeList},
		{"comparison", "(x == 5)", NodeList},
		{"missing value", "(x =)", NodeList},
		{"number target", "(1 = 2)", NodeList},
		{"assignment with comment", "(x ; note\n = 1)", NodeAssign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse(tt.src)
			require.NoError(t, err)
			require.Len(t, root.Children, 1)
			assert.Equal(t, tt.want, root.Children[0].Kind)
		})
	}
}

func TestParse_CallForm(t *testing.T) {
	root, err := Parse("println(x \"hi\")\nfoo (y)")
	require.NoError(t, err)
	require.Len(t, root.Children, 3)

	call := root.Children[0]
	assert.Equal(t, NodeCall, call.Kind)
	assert.Equal(t, `println(x "hi")`, call.Text)
	assert.Equal(t, "println", call.Head().Text)
	assert.Equal(t, []NodeKind{NodeSymbol, NodeSymbol, NodeString}, kinds(call.Children))

	// whitespace before the paren makes it a symbol followed by a list
	assert.Equal(t, NodeSymbol, root.Children[1].Kind)
	assert.Equal(t, NodeList, root.Children[2].Kind)
	assert.Equal(t, 2, root.Children[2].Start.Line)
}

func TestParse_CommentSpansLineTerminator(t *testing.T) {
	root, err := Parse(";;; the answer\n(x = 42)")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	comment := root.Children[0]
	assert.Equal(t, NodeComment, comment.Kind)
	assert.Equal(t, ";;; the answer", comment.Text)
	assert.Equal(t, Position{Line: 2, Column: 1, Offset: 15}, comment.End)
	assert.Equal(t, comment.End.Line, root.Children[1].Start.Line)
}

func TestParse_CommentAtEOF(t *testing.T) {
	root, err := Parse("(x = 1) ; trailing")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, 1, root.Children[1].End.Line)
}

func TestParse_Quote(t *testing.T) {
	root, err := Parse("'(a b) 'c")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, NodeQuote, root.Children[0].Kind)
	assert.Equal(t, "'(a b)", root.Children[0].Text)
	assert.Equal(t, NodeList, root.Children[0].Children[0].Kind)
	assert.Equal(t, "'c", root.Children[1].Text)
}

func TestParse_Atoms(t *testing.T) {
	root, err := Parse(`(f -1 2.5e3 x->y "a\"b" @optional done? ?key p~>slot)`)
	require.NoError(t, err)
	elems := root.Children[0].Children

	var texts []string
	for _, e := range elems {
		texts = append(texts, e.Kind.String()+":"+e.Text)
	}
	assert.Equal(t, []string{
		"symbol:f",
		"number:-1",
		"number:2.5e3",
		"symbol:x", "operator:->", "symbol:y",
		`string:"a\"b"`,
		"symbol:@optional",
		"symbol:done?",
		"symbol:?key",
		"symbol:p", "operator:~>", "symbol:slot",
	}, texts)
}

func TestParse_KeywordArgumentCall(t *testing.T) {
	root, err := Parse("procedure(f(@key (a 1)) a)\n(f(?a 2))")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	call := root.Children[1].Children[0]
	assert.Equal(t, NodeCall, call.Kind)
	assert.Equal(t, []NodeKind{NodeSymbol, NodeSymbol, NodeNumber}, kinds(call.Children))
	assert.Equal(t, "?a", call.Children[1].Text)
}

func TestParse_MultilinePositions(t *testing.T) {
	src := "(let ((a 1))\n  (a))"
	root, err := Parse(src)
	require.NoError(t, err)

	let := root.Children[0]
	assert.Equal(t, Position{Line: 1, Column: 1, Offset: 0}, let.Start)
	assert.Equal(t, Position{Line: 2, Column: 7, Offset: len(src)}, let.End)

	body := let.Children[2]
	assert.Equal(t, Position{Line: 2, Column: 3, Offset: 15}, body.Start)
}

func TestParse_UnicodeColumnsCountRunes(t *testing.T) {
	root, err := Parse(`("λ" x)`)
	require.NoError(t, err)
	x := root.Children[0].Children[1]
	assert.Equal(t, 6, x.Start.Column)
	assert.Equal(t, 6, x.Start.Offset)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
		msg  string
	}{
		{"unclosed list", "(x = 1)\n(foo (bar)", 2, 1, "unclosed '('"},
		{"unexpected close", "(x))", 1, 4, "unexpected ')'"},
		{"unterminated string", "(x = \"abc", 1, 6, "unterminated string"},
		{"bad character", "(x = #)", 1, 6, "unexpected character '#'"},
		{"bare question mark", "(f ? 1)", 1, 4, "unexpected character '?'"},
		{"dangling quote", "(a ')", 1, 4, "quote without datum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.line, se.Line)
			assert.Equal(t, tt.col, se.Column)
			assert.Equal(t, tt.msg, se.Message)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	root, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, NodeFile, root.Kind)
	assert.Empty(t, root.Children)
}

func TestSyntaxError_FormatTerminal(t *testing.T) {
	err := &SyntaxError{Line: 2, Column: 3, Message: "unexpected ')'"}
	out := err.FormatTerminal("a.il", "(x = 1)\n  )")

	assert.Contains(t, out, "a.il:2:3")
	assert.Contains(t, out, "unexpected ')'")
	assert.Contains(t, out, "  )")
	assert.Equal(t, "2:3: unexpected ')'", err.Error())
}
