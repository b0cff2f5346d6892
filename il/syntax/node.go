package syntax

// NodeKind identifies the grammar rule a Node was produced by
type NodeKind int

const (
	NodeFile     NodeKind = iota // whole source file
	NodeComment                  // ; line comment
	NodeSymbol                   // bare identifier
	NodeNumber                   // numeric literal
	NodeString                   // "string" literal
	NodeOperator                 // = + - -> ~> ...
	NodeQuote                    // 'datum
	NodeList                     // ( ... )
	NodeCall                     // name( ... )
	NodeAssign                   // (name = expr ...)
)

var nodeKindNames = map[NodeKind]string{
	NodeFile:     "file",
	NodeComment:  "comment",
	NodeSymbol:   "symbol",
	NodeNumber:   "number",
	NodeString:   "string",
	NodeOperator: "operator",
	NodeQuote:    "quote",
	NodeList:     "list",
	NodeCall:     "call",
	NodeAssign:   "assign",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Node is one element of the parse tree.
//
// Start is inclusive and End exclusive. A comment's End lies past its line
// terminator, i.e. on column 1 of the following line.
type Node struct {
	Kind     NodeKind
	Text     string // raw source text; comments exclude the line terminator
	Start    Position
	End      Position
	Children []*Node
}

// IsListForm reports whether the node is a parenthesised form, prefix or C-style
func (n *Node) IsListForm() bool {
	return n.Kind == NodeList || n.Kind == NodeCall
}

// Elements returns the children that carry code, skipping comments
func (n *Node) Elements() []*Node {
	elems := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind != NodeComment {
			elems = append(elems, c)
		}
	}
	return elems
}

// Head returns the first non-comment child, or nil
func (n *Node) Head() *Node {
	for _, c := range n.Children {
		if c.Kind != NodeComment {
			return c
		}
	}
	return nil
}
