package server

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.lsp.dev/uri"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/il/cache"
	"github.com/teranos/ilsp/il/query"
	"github.com/teranos/ilsp/internal/util"
)

// pathFromURI converts a file:// URI to a local path
func pathFromURI(u string) (string, error) {
	if !strings.HasPrefix(u, uri.FileScheme+"://") {
		return "", errors.NewInvalidRequestError("unsupported document URI %q", u)
	}
	return uri.URI(u).Filename(), nil
}

// uriFromPath converts a local path to a file:// URI
func uriFromPath(path string) protocol.DocumentUri {
	return protocol.DocumentUri(uri.File(path))
}

// utf16Source serves cached tokens with UTF-16 columns. Queries then run
// entirely in protocol columns, so incoming positions need no conversion.
type utf16Source struct {
	cache *cache.SymbolCache
}

func (s utf16Source) Lookup(path string) ([]analysis.Token, bool) {
	e, ok := s.cache.Entry(path)
	if !ok {
		return nil, false
	}
	return e.Columns.Tokens(e.Tokens), true
}

func toPosition(p protocol.Position) analysis.Position {
	return analysis.Position{Line: int(p.Line), Character: int(p.Character)}
}

func fromPosition(p analysis.Position) protocol.Position {
	return protocol.Position{Line: clamp(p.Line), Character: clamp(p.Character)}
}

func fromRange(r analysis.Range) protocol.Range {
	return protocol.Range{Start: fromPosition(r.Start), End: fromPosition(r.End)}
}

func clamp(v int) protocol.UInteger {
	if v < 0 {
		return 0
	}
	return protocol.UInteger(v)
}

// toDiagnostics always returns a non-nil slice so that an empty publish
// clears the client's markers
func toDiagnostics(diags []analysis.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverity(d.Severity)
		pd := protocol.Diagnostic{
			Range:    fromRange(d.Range),
			Severity: &severity,
			Source:   util.Ptr(d.Source),
			Message:  d.Message,
		}
		if d.Code != "" {
			pd.Code = &protocol.IntegerOrString{Value: d.Code}
		}
		out = append(out, pd)
	}
	return out
}

// completionKind maps a token kind to its completion item kind
func completionKind(k analysis.TokenKind) protocol.CompletionItemKind {
	switch k {
	case analysis.Function:
		return protocol.CompletionItemKindFunction
	case analysis.Struct:
		return protocol.CompletionItemKindStruct
	case analysis.LetBlock:
		return protocol.CompletionItemKindKeyword
	default:
		return protocol.CompletionItemKindVariable
	}
}

// symbolKind maps a token kind to its outline symbol kind
func symbolKind(k analysis.TokenKind) protocol.SymbolKind {
	switch k {
	case analysis.Function:
		return protocol.SymbolKindFunction
	case analysis.Struct:
		return protocol.SymbolKindStruct
	case analysis.LetBlock:
		return protocol.SymbolKindNamespace
	default:
		return protocol.SymbolKindVariable
	}
}

func toCompletionItems(suggestions []query.Suggestion) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(suggestions))
	for _, s := range suggestions {
		kind := completionKind(s.Kind)
		item := protocol.CompletionItem{
			Label:  s.Name,
			Kind:   &kind,
			Detail: completionDetail(s),
		}
		if s.Documentation != "" {
			item.Documentation = protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: "*" + s.Scope + "*\n\n" + s.Documentation,
			}
		}
		items = append(items, item)
	}
	return items
}

// completionDetail always carries the scope label, followed by the
// declaration text when there is one
func completionDetail(s query.Suggestion) *string {
	detail := s.Scope
	if s.Detail != "" {
		detail += " · " + s.Detail
	}
	return stringPtrOrNil(detail)
}

func toDocumentSymbols(symbols []query.Symbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, s := range symbols {
		ds := protocol.DocumentSymbol{
			Name:           s.Name,
			Detail:         stringPtrOrNil(firstLine(s.Detail)),
			Kind:           symbolKind(s.Kind),
			Range:          fromRange(s.Range),
			SelectionRange: fromRange(s.Selection),
		}
		if len(s.Children) > 0 {
			ds.Children = toDocumentSymbols(s.Children)
		}
		out = append(out, ds)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
