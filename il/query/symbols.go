package query

import (
	"github.com/teranos/ilsp/il/analysis"
)

// Symbol is one entry of a document outline
type Symbol struct {
	Name      string
	Kind      analysis.TokenKind
	Detail    string
	Range     analysis.Range
	Selection analysis.Range
	Children  []Symbol
}

// DocumentSymbols builds the outline: declarations and scope openers at the
// top level, with local bindings nested under the token that opened their
// scope.
func DocumentSymbols(tokens []analysis.Token) []Symbol {
	var out []Symbol
	openers := make(map[analysis.Range]int)

	for _, tok := range tokens {
		sym := Symbol{
			Name:      tok.Name,
			Kind:      tok.Kind,
			Detail:    tok.Info,
			Range:     tok.Place,
			Selection: tok.Selection,
		}

		switch tok.Kind {
		case analysis.VariableUse:
			continue
		case analysis.VariableAssignment:
			if tok.Scope.Kind == analysis.ScopeLocal {
				if idx, ok := openers[tok.Scope.Range]; ok {
					out[idx].Children = append(out[idx].Children, sym)
					continue
				}
			}
		}

		out = append(out, sym)
		if tok.Encloses != nil {
			openers[*tok.Encloses] = len(out) - 1
		}
	}
	return out
}
