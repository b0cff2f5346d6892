// Package query answers position-based questions against cached tokens.
//
// Every function here is read-only over a token list; a missing file or a
// position with nothing under it yields an empty result, never an error.
package query

import (
	"github.com/teranos/ilsp/il/analysis"
)

// Source provides the token list of a file
type Source interface {
	Lookup(path string) ([]analysis.Token, bool)
}

// Engine runs queries against a Source, typically the symbol cache
type Engine struct {
	src Source
}

// NewEngine creates an engine reading from src
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// Completion lists the declarations visible at pos in path
func (e *Engine) Completion(path string, pos analysis.Position) []Suggestion {
	tokens, ok := e.src.Lookup(path)
	if !ok {
		return nil
	}
	return Completion(tokens, pos)
}

// Hover describes the declaration of the use under pos in path
func (e *Engine) Hover(path string, pos analysis.Position) (HoverResult, bool) {
	tokens, ok := e.src.Lookup(path)
	if !ok {
		return HoverResult{}, false
	}
	return Hover(tokens, pos)
}

// DocumentSymbols returns the outline of path
func (e *Engine) DocumentSymbols(path string) []Symbol {
	tokens, ok := e.src.Lookup(path)
	if !ok {
		return nil
	}
	return DocumentSymbols(tokens)
}

// SemanticTokens returns the encoded semantic tokens of path
func (e *Engine) SemanticTokens(path string) []uint32 {
	tokens, ok := e.src.Lookup(path)
	if !ok {
		return []uint32{}
	}
	return EncodeSemanticTokens(SemanticTokens(tokens))
}

// resolve finds the declaration of name as seen from at: the first one
// visible there, else the first one with that name
func resolve(tokens []analysis.Token, name string, at analysis.Position) (analysis.Token, bool) {
	first := -1
	for i, tok := range tokens {
		if !tok.Kind.IsDeclaration() || tok.Name != name {
			continue
		}
		if tok.Scope.Visible(at) {
			return tok, true
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return analysis.Token{}, false
	}
	return tokens[first], true
}
