package analysis

import "unicode/utf16"

// ColumnMap converts the rune columns used throughout analysis into UTF-16
// code unit columns, the default position encoding of the protocol. Only
// lines holding characters outside the Basic Multilingual Plane are
// recorded, so the zero value maps every column to itself.
//
// A ColumnMap is never modified after construction and may be shared.
type ColumnMap struct {
	wide map[int][]int // line -> ascending rune columns of surrogate pairs
}

// NewColumnMap indexes src. Lines and columns are counted the way the
// parser counts them: '\n' ends a line and every other rune is one column.
func NewColumnMap(src string) ColumnMap {
	var m ColumnMap
	line, col := 0, 0
	for _, r := range src {
		if r == '\n' {
			line++
			col = 0
			continue
		}
		if utf16.RuneLen(r) == 2 {
			if m.wide == nil {
				m.wide = make(map[int][]int)
			}
			m.wide[line] = append(m.wide[line], col)
		}
		col++
	}
	return m
}

// Identity reports whether every column maps to itself
func (m ColumnMap) Identity() bool {
	return len(m.wide) == 0
}

// Position converts p to UTF-16 columns
func (m ColumnMap) Position(p Position) Position {
	for _, c := range m.wide[p.Line] {
		if c >= p.Character {
			break
		}
		p.Character++
	}
	return p
}

// Range converts r to UTF-16 columns
func (m ColumnMap) Range(r Range) Range {
	return Range{Start: m.Position(r.Start), End: m.Position(r.End)}
}

// Tokens converts every position carried by tokens, in place, and returns
// the slice. Encloses is reallocated so shared ranges are never modified.
func (m ColumnMap) Tokens(tokens []Token) []Token {
	if m.Identity() {
		return tokens
	}
	for i := range tokens {
		t := &tokens[i]
		t.Scope.From = m.Position(t.Scope.From)
		t.Scope.Range = m.Range(t.Scope.Range)
		t.Place = m.Range(t.Place)
		t.Selection = m.Range(t.Selection)
		if t.Encloses != nil {
			enc := m.Range(*t.Encloses)
			t.Encloses = &enc
		}
	}
	return tokens
}

// Diagnostics returns a converted copy of diags
func (m ColumnMap) Diagnostics(diags []Diagnostic) []Diagnostic {
	if m.Identity() || len(diags) == 0 {
		return diags
	}
	out := make([]Diagnostic, len(diags))
	for i, d := range diags {
		d.Range = m.Range(d.Range)
		out[i] = d
	}
	return out
}
