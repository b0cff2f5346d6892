package query

import (
	"github.com/teranos/ilsp/il/analysis"
)

// Suggestion is one completion candidate
type Suggestion struct {
	Name          string             `json:"name" yaml:"name"`
	Kind          analysis.TokenKind `json:"kind" yaml:"kind"`
	Scope         string             `json:"scope" yaml:"scope"`
	Documentation string             `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	// Detail is the raw text of the declaring form
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Completion returns, in token order, every declaration visible at pos
func Completion(tokens []analysis.Token, pos analysis.Position) []Suggestion {
	var out []Suggestion
	for _, tok := range tokens {
		if !tok.Kind.IsDeclaration() || !tok.Scope.Visible(pos) {
			continue
		}
		out = append(out, Suggestion{
			Name:          tok.Name,
			Kind:          tok.Kind,
			Scope:         tok.Scope.Label(),
			Documentation: tok.Documentation,
			Detail:        tok.Info,
		})
	}
	return out
}
