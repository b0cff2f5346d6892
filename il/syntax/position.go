package syntax

// Position is a location in source text as reported by the parser.
// Line and Column are 1-based; Offset is the 0-based byte offset.
// Columns count runes, not bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// positionTracker maintains line/column/offset state while scanning
type positionTracker struct {
	source string
	line   int
	column int
	offset int
}

func newPositionTracker(source string) *positionTracker {
	return &positionTracker{
		source: source,
		line:   1,
		column: 1,
		offset: 0,
	}
}

// advance consumes one rune of width size
func (pt *positionTracker) advance(ch rune, size int) {
	if ch == '\n' {
		pt.line++
		pt.column = 1
	} else {
		pt.column++
	}
	pt.offset += size
}

// mark returns the current position snapshot
func (pt *positionTracker) mark() Position {
	return Position{
		Line:   pt.line,
		Column: pt.column,
		Offset: pt.offset,
	}
}
