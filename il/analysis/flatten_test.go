package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/ilsp/il/syntax"
)

func flattenSource(t *testing.T, src string) ([]*syntax.Node, []*syntax.Node) {
	t.Helper()
	root, err := syntax.Parse(src)
	require.NoError(t, err)
	return Flatten(root)
}

func nodeKinds(nodes []*syntax.Node) []syntax.NodeKind {
	out := make([]syntax.NodeKind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}

func TestFlatten_PreOrder(t *testing.T) {
	nodes, unhandled := flattenSource(t, "(x = 1)\n(foo (bar) \"s\") ; c")
	assert.Empty(t, unhandled)

	assert.Equal(t, []syntax.NodeKind{
		syntax.NodeFile,
		syntax.NodeAssign, syntax.NodeSymbol, syntax.NodeOperator, syntax.NodeNumber,
		syntax.NodeList, syntax.NodeSymbol, syntax.NodeList, syntax.NodeSymbol, syntax.NodeString,
		syntax.NodeComment,
	}, nodeKinds(nodes))

	// a composite precedes its own children
	assert.Equal(t, "(foo (bar) \"s\")", nodes[5].Text)
	assert.Equal(t, "foo", nodes[6].Text)
	assert.Equal(t, "(bar)", nodes[7].Text)
	assert.Equal(t, "bar", nodes[8].Text)
}

func TestFlatten_CallForm(t *testing.T) {
	nodes, _ := flattenSource(t, "println(x)")
	assert.Equal(t, []syntax.NodeKind{
		syntax.NodeFile, syntax.NodeCall, syntax.NodeSymbol, syntax.NodeSymbol,
	}, nodeKinds(nodes))
}

func TestFlatten_QuoteIsUnhandled(t *testing.T) {
	nodes, unhandled := flattenSource(t, "(a '(b c) d)")

	require.Len(t, unhandled, 1)
	assert.Equal(t, syntax.NodeQuote, unhandled[0].Kind)

	var texts []string
	for _, n := range nodes {
		texts = append(texts, n.Text)
	}
	assert.NotContains(t, texts, "b")
	assert.NotContains(t, texts, "c")
	assert.Contains(t, texts, "d")
}

func TestFlatten_DeepNesting(t *testing.T) {
	const depth = 500
	src := strings.Repeat("(", depth) + "x" + strings.Repeat(")", depth)
	nodes, unhandled := flattenSource(t, src)

	assert.Empty(t, unhandled)
	assert.Len(t, nodes, depth+2)
	assert.Equal(t, "x", nodes[len(nodes)-1].Text)
}

func TestFlatten_Nil(t *testing.T) {
	nodes, unhandled := Flatten(nil)
	assert.Empty(t, nodes)
	assert.Empty(t, unhandled)
}
