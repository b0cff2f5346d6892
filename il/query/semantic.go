package query

import (
	"sort"

	"github.com/teranos/ilsp/il/analysis"
)

// Semantic token type indices.
// Must match the order in TokenTypes, which is advertised as the legend.
const (
	TokenTypeVariable uint32 = iota
	TokenTypeFunction
	TokenTypeStruct
	TokenTypeKeyword
	TokenTypeParameter
)

// TokenTypes is the semantic token legend
var TokenTypes = []string{"variable", "function", "struct", "keyword", "parameter"}

// Semantic token modifier bits, in TokenModifiers order
const (
	ModifierDeclaration uint32 = 1 << iota
)

// TokenModifiers is the semantic token modifier legend
var TokenModifiers = []string{"declaration"}

// SemanticToken is one highlighted identifier in absolute coordinates
type SemanticToken struct {
	Line      uint32
	Character uint32
	Length    uint32
	Type      uint32
	Modifiers uint32
}

// SemanticTokens classifies the identifier of every token, sorted by
// position. Multi-line selections and duplicates are skipped.
func SemanticTokens(tokens []analysis.Token) []SemanticToken {
	params := parameterScopes(tokens)

	out := make([]SemanticToken, 0, len(tokens))
	for _, tok := range tokens {
		sel := tok.Selection
		if !sel.SingleLine() || sel.End.Character <= sel.Start.Character {
			continue
		}

		st := SemanticToken{
			Line:      uint32(sel.Start.Line),
			Character: uint32(sel.Start.Character),
			Length:    uint32(sel.End.Character - sel.Start.Character),
		}

		switch tok.Kind {
		case analysis.LetBlock:
			st.Type = TokenTypeKeyword
		case analysis.VariableUse:
			st.Type = TokenTypeVariable
			if decl, ok := resolve(tokens, tok.Name, tok.Place.Start); ok {
				st.Type = tokenType(decl, params)
			}
		default:
			st.Type = tokenType(tok, params)
			st.Modifiers = ModifierDeclaration
		}
		out = append(out, st)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Character < out[j].Character
	})

	deduped := out[:0]
	for i, st := range out {
		if i > 0 && st.Line == out[i-1].Line && st.Character == out[i-1].Character {
			continue
		}
		deduped = append(deduped, st)
	}
	return deduped
}

// parameterScopes collects the ranges of procedure bodies
func parameterScopes(tokens []analysis.Token) map[analysis.Range]struct{} {
	scopes := make(map[analysis.Range]struct{})
	for _, tok := range tokens {
		if tok.Kind == analysis.Function && tok.Encloses != nil {
			scopes[*tok.Encloses] = struct{}{}
		}
	}
	return scopes
}

func tokenType(decl analysis.Token, params map[analysis.Range]struct{}) uint32 {
	switch decl.Kind {
	case analysis.Function:
		return TokenTypeFunction
	case analysis.Struct:
		return TokenTypeStruct
	case analysis.VariableAssignment:
		if decl.Scope.Kind == analysis.ScopeLocal {
			if _, ok := params[decl.Scope.Range]; ok {
				return TokenTypeParameter
			}
		}
	}
	return TokenTypeVariable
}

// EncodeSemanticTokens converts tokens to the LSP wire format: 5-tuples of
// (deltaLine, deltaStart, length, tokenType, tokenModifiers), each position
// relative to the previous token
func EncodeSemanticTokens(tokens []SemanticToken) []uint32 {
	if len(tokens) == 0 {
		return []uint32{}
	}

	data := make([]uint32, 0, len(tokens)*5)
	var prevLine, prevChar uint32

	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		deltaStart := token.Character
		if deltaLine == 0 {
			deltaStart = token.Character - prevChar
		}

		data = append(data,
			deltaLine,
			deltaStart,
			token.Length,
			token.Type,
			token.Modifiers,
		)

		prevLine = token.Line
		prevChar = token.Character
	}
	return data
}
