// Package syntax parses SKILL-style .il source into a tree of typed nodes.
//
// Positions in the tree are 1-based (line and column); consumers that speak
// the editor protocol convert them to 0-based coordinates.
package syntax

// Parse parses a whole source file. On failure the returned error is a
// *SyntaxError carrying the single location where parsing stopped.
func Parse(src string) (*Node, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: toks}
	root := &Node{
		Kind:  NodeFile,
		Text:  src,
		Start: Position{Line: 1, Column: 1, Offset: 0},
		End:   toks[len(toks)-1].end,
	}
	for p.cur().kind != tokEOF {
		n, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, n)
	}
	return root, nil
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) cur() token {
	return p.toks[p.i]
}

func (p *parser) peekTok() token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseElement() (*Node, error) {
	tok := p.cur()
	switch tok.kind {
	case tokComment:
		p.advance()
		return p.leaf(NodeComment, tok), nil
	case tokNumber:
		p.advance()
		return p.leaf(NodeNumber, tok), nil
	case tokString:
		p.advance()
		return p.leaf(NodeString, tok), nil
	case tokOperator:
		p.advance()
		return p.leaf(NodeOperator, tok), nil
	case tokSymbol:
		next := p.peekTok()
		if next.kind == tokLParen && next.start.Offset == tok.end.Offset {
			return p.parseCall()
		}
		p.advance()
		return p.leaf(NodeSymbol, tok), nil
	case tokQuote:
		return p.parseQuote()
	case tokLParen:
		return p.parseList()
	case tokRParen:
		return nil, newSyntaxError(tok.start, "unexpected ')'")
	}
	return nil, newSyntaxError(tok.start, "unexpected end of input")
}

func (p *parser) leaf(kind NodeKind, tok token) *Node {
	return &Node{Kind: kind, Text: tok.text, Start: tok.start, End: tok.end}
}

// parseBody parses elements up to and including the closing paren.
// open is the opening paren, used to report an unclosed form.
func (p *parser) parseBody(open token) ([]*Node, token, error) {
	var children []*Node
	for {
		switch p.cur().kind {
		case tokRParen:
			return children, p.advance(), nil
		case tokEOF:
			return nil, token{}, newSyntaxError(open.start, "unclosed '('")
		}
		n, err := p.parseElement()
		if err != nil {
			return nil, token{}, err
		}
		children = append(children, n)
	}
}

func (p *parser) parseList() (*Node, error) {
	open := p.advance()
	children, closeTok, err := p.parseBody(open)
	if err != nil {
		return nil, err
	}
	n := p.composite(NodeList, open.start, closeTok.end, children)
	if isAssignment(n) {
		n.Kind = NodeAssign
	}
	return n, nil
}

func (p *parser) parseCall() (*Node, error) {
	name := p.advance()
	open := p.advance()
	children, closeTok, err := p.parseBody(open)
	if err != nil {
		return nil, err
	}
	children = append([]*Node{p.leaf(NodeSymbol, name)}, children...)
	return p.composite(NodeCall, name.start, closeTok.end, children), nil
}

func (p *parser) parseQuote() (*Node, error) {
	quote := p.advance()
	switch p.cur().kind {
	case tokEOF, tokRParen, tokComment:
		return nil, newSyntaxError(quote.start, "quote without datum")
	}
	datum, err := p.parseElement()
	if err != nil {
		return nil, err
	}
	return p.composite(NodeQuote, quote.start, datum.End, []*Node{datum}), nil
}

func (p *parser) composite(kind NodeKind, start, end Position, children []*Node) *Node {
	return &Node{
		Kind:     kind,
		Text:     p.src[start.Offset:end.Offset],
		Start:    start,
		End:      end,
		Children: children,
	}
}

// isAssignment recognises (name = expr ...)
func isAssignment(n *Node) bool {
	elems := n.Elements()
	return len(elems) >= 3 &&
		elems[0].Kind == NodeSymbol &&
		elems[1].Kind == NodeOperator && elems[1].Text == "="
}
