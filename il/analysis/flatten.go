package analysis

import (
	"github.com/teranos/ilsp/il/syntax"
)

// Flatten walks the tree rooted at root and returns its semantically
// relevant nodes in pre-order: every composite node (file, assignment,
// list, call) is followed immediately by its own flattened children.
//
// Nodes of any other kind, such as quoted data, are returned in unhandled
// and dropped together with their subtree.
func Flatten(root *syntax.Node) (nodes []*syntax.Node, unhandled []*syntax.Node) {
	if root == nil {
		return nil, nil
	}

	stack := []*syntax.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Kind {
		case syntax.NodeComment, syntax.NodeSymbol, syntax.NodeNumber,
			syntax.NodeString, syntax.NodeOperator:
			nodes = append(nodes, n)
		case syntax.NodeFile, syntax.NodeAssign, syntax.NodeList, syntax.NodeCall:
			nodes = append(nodes, n)
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		default:
			unhandled = append(unhandled, n)
		}
	}
	return nodes, unhandled
}
