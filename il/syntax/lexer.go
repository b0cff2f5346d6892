package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokSymbol
	tokNumber
	tokString
	tokOperator
	tokQuote
	tokComment
)

type token struct {
	kind  tokenKind
	text  string
	start Position
	end   Position
}

const operatorChars = "=+-*/<>!&|~:,.^%@"

// lexer splits source text into tokens, tracking positions
type lexer struct {
	src string
	pos *positionTracker
}

func newLexer(src string) *lexer {
	return &lexer{src: src, pos: newPositionTracker(src)}
}

// peek returns the rune at the current offset plus n runes
func (l *lexer) peek(n int) rune {
	off := l.pos.offset
	for i := 0; ; i++ {
		if off >= len(l.src) {
			return utf8.RuneError
		}
		r, size := utf8.DecodeRuneInString(l.src[off:])
		if i == n {
			return r
		}
		off += size
	}
}

func (l *lexer) eof() bool {
	return l.pos.offset >= len(l.src)
}

func (l *lexer) next() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos.offset:])
	l.pos.advance(r, size)
	return r
}

// tokenize scans the whole input
func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		tok, err := l.scan()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) scan() (token, error) {
	for !l.eof() && unicode.IsSpace(l.peek(0)) {
		l.next()
	}

	start := l.pos.mark()
	if l.eof() {
		return token{kind: tokEOF, start: start, end: start}, nil
	}

	ch := l.peek(0)
	switch {
	case ch == ';':
		return l.scanComment(start), nil
	case ch == '(':
		l.next()
		return l.emit(tokLParen, start), nil
	case ch == ')':
		l.next()
		return l.emit(tokRParen, start), nil
	case ch == '\'':
		l.next()
		return l.emit(tokQuote, start), nil
	case ch == '"':
		return l.scanString(start)
	case unicode.IsDigit(ch), (ch == '-' || ch == '+') && unicode.IsDigit(l.peek(1)):
		return l.scanNumber(start), nil
	case (ch == '@' || ch == '?') && isSymbolStart(l.peek(1)):
		// @key parameter markers and ?name keyword arguments
		l.next()
		return l.scanSymbol(start), nil
	case isSymbolStart(ch):
		return l.scanSymbol(start), nil
	case strings.ContainsRune(operatorChars, ch):
		for !l.eof() && strings.ContainsRune(operatorChars, l.peek(0)) {
			l.next()
		}
		return l.emit(tokOperator, start), nil
	}
	return token{}, newSyntaxError(start, "unexpected character %q", ch)
}

func (l *lexer) emit(kind tokenKind, start Position) token {
	end := l.pos.mark()
	return token{kind: kind, text: l.src[start.Offset:end.Offset], start: start, end: end}
}

// scanComment consumes through the line terminator; the text excludes it
func (l *lexer) scanComment(start Position) token {
	for !l.eof() && l.peek(0) != '\n' {
		l.next()
	}
	text := strings.TrimRight(l.src[start.Offset:l.pos.offset], "\r")
	if !l.eof() {
		l.next()
	}
	return token{kind: tokComment, text: text, start: start, end: l.pos.mark()}
}

func (l *lexer) scanString(start Position) (token, error) {
	l.next()
	for !l.eof() {
		switch l.next() {
		case '\\':
			if !l.eof() {
				l.next()
			}
		case '"':
			return l.emit(tokString, start), nil
		}
	}
	return token{}, newSyntaxError(start, "unterminated string")
}

func (l *lexer) scanNumber(start Position) token {
	l.next()
	for !l.eof() {
		ch := l.peek(0)
		switch {
		case unicode.IsDigit(ch), ch == '.', ch == '_':
			l.next()
		case (ch == 'e' || ch == 'E') && (unicode.IsDigit(l.peek(1)) || l.peek(1) == '-' || l.peek(1) == '+'):
			l.next()
			l.next()
		default:
			return l.emit(tokNumber, start)
		}
	}
	return l.emit(tokNumber, start)
}

func (l *lexer) scanSymbol(start Position) token {
	for !l.eof() && isSymbolPart(l.peek(0)) {
		l.next()
	}
	return l.emit(tokSymbol, start)
}

func isSymbolStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isSymbolPart(ch rune) bool {
	return isSymbolStart(ch) || unicode.IsDigit(ch) || ch == '?' || ch == '!'
}
