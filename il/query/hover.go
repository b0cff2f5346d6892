package query

import (
	"fmt"

	"github.com/teranos/ilsp/il/analysis"
)

// HoverResult describes the declaration behind a hovered use
type HoverResult struct {
	Name  string
	Scope string
	// Line is the 1-based line of the declaration
	Line          int
	Info          string
	Documentation string
	// Use is the range of the hovered occurrence
	Use analysis.Range
	// Declaration is the place of the resolved declaration
	Declaration analysis.Range
}

// Markdown renders the hover text shown by editors
func (h HoverResult) Markdown() string {
	return fmt.Sprintf("*%s* **%s**\n\n*declared on line %d*:\n```lisp\n  %s\n```\n---\n%s",
		h.Scope, h.Name, h.Line, h.Info, h.Documentation)
}

// Hover finds the use under pos and resolves its declaration. When uses
// overlap the last one in token order wins.
func Hover(tokens []analysis.Token, pos analysis.Position) (HoverResult, bool) {
	use := -1
	for i, tok := range tokens {
		if tok.Kind == analysis.VariableUse && tok.Place.Contains(pos) {
			use = i
		}
	}
	if use < 0 {
		return HoverResult{}, false
	}

	u := tokens[use]
	decl, ok := resolve(tokens, u.Name, u.Place.Start)
	if !ok || decl.Info == "" {
		return HoverResult{}, false
	}

	return HoverResult{
		Name:          decl.Name,
		Scope:         decl.Scope.Label(),
		Line:          decl.Place.Start.Line + 1,
		Info:          decl.Info,
		Documentation: decl.Documentation,
		Use:           u.Place,
		Declaration:   decl.Place,
	}, true
}
