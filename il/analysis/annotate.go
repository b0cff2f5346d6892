package analysis

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/syntax"
	"github.com/teranos/ilsp/logger"
)

const (
	keywordProcedure = "procedure"
	keywordDefstruct = "defstruct"

	// parameter markers such as @optional and @rest
	parameterMarkerPrefix = "@"
	// keyword argument names in calls, f(?name value)
	keywordArgPrefix = "?"
)

// slot access operators; the name on their right is a struct slot
var slotOperators = map[string]struct{}{"->": {}, "~>": {}}

// Options configures an Annotator
type Options struct {
	// DocPrefix marks a comment as a docstring
	DocPrefix string
	// ScopingKeywords open a local binding scope for the following list
	ScopingKeywords []string
	// ExemptLiterals skips the use-before-declaration check for Literals
	ExemptLiterals bool
	Literals       []string
	// Predeclared names are never reported as used before declaration
	Predeclared []string
	// Suggestions appends a "did you mean" hint to undeclared-name diagnostics
	Suggestions bool
}

// DefaultOptions returns the options used when no configuration is given
func DefaultOptions() Options {
	return Options{
		DocPrefix:       ";;;",
		ScopingKeywords: []string{"let", "prog"},
		Literals:        []string{"t", "nil"},
		Suggestions:     true,
	}
}

// Annotator assigns kind, scope and documentation to a flattened node stream.
// It holds no per-pass state and is safe for concurrent use.
type Annotator struct {
	opts     Options
	scoping  map[string]struct{}
	literals map[string]struct{}
	logger   *zap.SugaredLogger
}

// NewAnnotator creates an annotator. A nil logger discards output.
func NewAnnotator(opts Options, log *zap.SugaredLogger) *Annotator {
	if opts.DocPrefix == "" {
		opts.DocPrefix = DefaultOptions().DocPrefix
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Annotator{
		opts:     opts,
		scoping:  toSet(opts.ScopingKeywords),
		literals: toSet(opts.Literals),
		logger:   log,
	}
}

// Options returns the annotator's configuration
func (a *Annotator) Options() Options {
	return a.opts
}

// Analyze parses src and runs both passes. A syntax error yields no tokens
// and a single diagnostic.
func (a *Annotator) Analyze(src string) Result {
	res := a.analyze(src)
	res.Columns = NewColumnMap(src)
	return res
}

func (a *Annotator) analyze(src string) Result {
	root, err := syntax.Parse(src)
	if err != nil {
		var se *syntax.SyntaxError
		if errors.As(err, &se) {
			return Result{Diagnostics: []Diagnostic{SyntaxDiagnostic(se)}}
		}
		return Result{Diagnostics: []Diagnostic{{
			Severity: SeverityError,
			Message:  "syntax error: " + err.Error(),
			Source:   DiagnosticSource,
			Code:     CodeSyntax,
		}}}
	}

	nodes, unhandled := Flatten(root)
	for _, n := range unhandled {
		a.logger.Debugw("Dropped unhandled node",
			logger.FieldNodeKind, n.Kind.String(),
			logger.FieldLine, n.Start.Line,
		)
	}
	return a.Annotate(nodes)
}

// pendingDoc is the most recent docstring; end is where its comment ends
type pendingDoc struct {
	end  Position
	text string
}

// passState is carried from node to node through one Annotate pass
type passState struct {
	doc   *pendingDoc
	local *Range // active local scope awaiting its binding list

	declared map[string]struct{}
	names    []string // declaration order, for suggestions

	// consumed holds keyword, target and binding nodes that must not be
	// treated as uses or forms when the pass reaches them
	consumed map[*syntax.Node]struct{}
}

// Annotate runs the single forward pass over a flattened node stream
func (a *Annotator) Annotate(nodes []*syntax.Node) Result {
	st := passState{
		declared: make(map[string]struct{}, len(a.opts.Predeclared)),
		consumed: make(map[*syntax.Node]struct{}),
	}
	for _, name := range a.opts.Predeclared {
		st = declare(st, name)
	}

	var out Result
	for _, n := range nodes {
		st = a.step(st, n, &out)
	}
	return out
}

func (a *Annotator) step(st passState, n *syntax.Node, out *Result) passState {
	if _, ok := st.consumed[n]; ok {
		return st
	}

	switch n.Kind {
	case syntax.NodeComment:
		if text, ok := strings.CutPrefix(n.Text, a.opts.DocPrefix); ok {
			st.doc = &pendingDoc{end: FromSyntax(n.End), text: strings.TrimSpace(text)}
		}
	case syntax.NodeSymbol:
		if !strings.HasPrefix(n.Text, keywordArgPrefix) {
			a.use(st, n, out)
		}
	case syntax.NodeAssign:
		consumeSlots(st, n)
		st = a.assignment(st, n, out)
	case syntax.NodeList, syntax.NodeCall:
		consumeSlots(st, n)
		st = a.listForm(st, n, out)
	case syntax.NodeFile:
		consumeSlots(st, n)
	case syntax.NodeNumber, syntax.NodeString, syntax.NodeOperator:
	default:
		a.logger.Debugw("Unhandled node in annotation pass",
			logger.FieldNodeKind, n.Kind.String(),
			logger.FieldLine, n.Start.Line,
		)
	}
	return st
}

func (a *Annotator) use(st passState, n *syntax.Node, out *Result) {
	r := RangeOf(n)
	out.Tokens = append(out.Tokens, Token{
		Kind:      VariableUse,
		Scope:     Global(r.End),
		Name:      n.Text,
		Place:     r,
		Selection: r,
	})

	if _, ok := st.declared[n.Text]; ok {
		return
	}
	if _, lit := a.literals[n.Text]; lit && a.opts.ExemptLiterals {
		return
	}
	out.Diagnostics = append(out.Diagnostics, a.undeclared(st, n.Text, r))
}

func (a *Annotator) undeclared(st passState, name string, r Range) Diagnostic {
	msg := fmt.Sprintf("%q used before declaration", name)
	if a.opts.Suggestions {
		if other := closestName(name, st.names); other != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", other)
		}
	}
	return Diagnostic{
		Range:    r,
		Severity: SeverityError,
		Message:  msg,
		Source:   DiagnosticSource,
		Code:     CodeUseBeforeDeclaration,
	}
}

// consumeSlots marks the slot names in p->slot and p~>slot accesses among
// the direct children of n
func consumeSlots(st passState, n *syntax.Node) {
	elems := n.Elements()
	for i := 1; i < len(elems); i++ {
		prev := elems[i-1]
		if prev.Kind != syntax.NodeOperator || elems[i].Kind != syntax.NodeSymbol {
			continue
		}
		if _, ok := slotOperators[prev.Text]; ok {
			st.consumed[elems[i]] = struct{}{}
		}
	}
}

// assignment handles (name = expr ...)
func (a *Annotator) assignment(st passState, n *syntax.Node, out *Result) passState {
	target := n.Head()
	if target == nil || target.Kind != syntax.NodeSymbol {
		return st
	}

	r := RangeOf(n)
	st.consumed[target] = struct{}{}
	st = declare(st, target.Text)
	out.Tokens = append(out.Tokens, Token{
		Kind:          VariableAssignment,
		Scope:         Global(r.End),
		Name:          target.Text,
		Info:          n.Text,
		Documentation: docFor(st, r),
		Place:         r,
		Selection:     RangeOf(target),
	})
	return st
}

func (a *Annotator) listForm(st passState, n *syntax.Node, out *Result) passState {
	if st.local != nil {
		return a.bindings(st, n, out)
	}

	head := n.Head()
	if head == nil || head.Kind != syntax.NodeSymbol {
		return st
	}
	switch {
	case a.isScoping(head.Text):
		return a.letBlock(st, n, head, out)
	case head.Text == keywordProcedure:
		return a.procedure(st, n, head, out)
	case head.Text == keywordDefstruct:
		return a.defstruct(st, n, head, out)
	}
	return st
}

// letBlock opens a local scope for the binding list that follows
func (a *Annotator) letBlock(st passState, n, head *syntax.Node, out *Result) passState {
	st.consumed[head] = struct{}{}

	elems := n.Elements()
	if len(elems) < 2 || !elems[1].IsListForm() {
		return st
	}

	r := RangeOf(n)
	encloses := r
	out.Tokens = append(out.Tokens, Token{
		Kind:      LetBlock,
		Scope:     Local(r),
		Name:      fmt.Sprintf("%s@%d", head.Text, r.Start.Line+1),
		Encloses:  &encloses,
		Place:     r,
		Selection: RangeOf(head),
	})

	active := r
	st.local = &active
	return st
}

// bindings declares each element of a binding list in the active local scope
func (a *Annotator) bindings(st passState, n *syntax.Node, out *Result) passState {
	scope := Local(*st.local)

	for _, el := range n.Elements() {
		var name *syntax.Node
		var info string

		switch {
		case el.Kind == syntax.NodeSymbol:
			name = el
			info = fmt.Sprintf("(%s nil)", el.Text)
		case el.IsListForm() || el.Kind == syntax.NodeAssign:
			if h := el.Head(); h != nil && h.Kind == syntax.NodeSymbol {
				name = h
				info = el.Text
				st.consumed[el] = struct{}{}
			}
		}
		if name == nil {
			continue
		}

		st.consumed[name] = struct{}{}
		st = declare(st, name.Text)
		out.Tokens = append(out.Tokens, Token{
			Kind:      VariableAssignment,
			Scope:     scope,
			Name:      name.Text,
			Info:      info,
			Place:     RangeOf(el),
			Selection: RangeOf(name),
		})
	}

	st.local = nil
	return st
}

// procedure handles (procedure (name params...) body...) and the C-style
// procedure(name(params...) body...)
func (a *Annotator) procedure(st passState, n, head *syntax.Node, out *Result) passState {
	st.consumed[head] = struct{}{}

	elems := n.Elements()
	if len(elems) < 2 || !elems[1].IsListForm() {
		return st
	}
	header := elems[1]
	params := header.Elements()
	if len(params) == 0 || params[0].Kind != syntax.NodeSymbol {
		return st
	}
	name := params[0]

	r := RangeOf(n)
	encloses := r
	st.consumed[header] = struct{}{}
	st.consumed[name] = struct{}{}
	st = declare(st, name.Text)
	out.Tokens = append(out.Tokens, Token{
		Kind:          Function,
		Scope:         Global(r.Start),
		Name:          name.Text,
		Info:          header.Text,
		Documentation: docFor(st, r),
		Encloses:      &encloses,
		Place:         r,
		Selection:     RangeOf(name),
	})

	for _, p := range params[1:] {
		var param *syntax.Node
		switch {
		case p.Kind == syntax.NodeSymbol && strings.HasPrefix(p.Text, parameterMarkerPrefix):
			st.consumed[p] = struct{}{}
		case p.Kind == syntax.NodeSymbol:
			param = p
		case p.IsListForm():
			// (param default)
			if h := p.Head(); h != nil && h.Kind == syntax.NodeSymbol {
				param = h
				st.consumed[p] = struct{}{}
			}
		}
		if param == nil {
			continue
		}

		st.consumed[param] = struct{}{}
		st = declare(st, param.Text)
		out.Tokens = append(out.Tokens, Token{
			Kind:      VariableAssignment,
			Scope:     Local(r),
			Name:      param.Text,
			Info:      header.Text,
			Place:     RangeOf(p),
			Selection: RangeOf(param),
		})
	}
	return st
}

// defstruct handles (defstruct name slot...)
func (a *Annotator) defstruct(st passState, n, head *syntax.Node, out *Result) passState {
	st.consumed[head] = struct{}{}

	elems := n.Elements()
	if len(elems) < 2 || elems[1].Kind != syntax.NodeSymbol {
		return st
	}
	name := elems[1]
	for _, slot := range elems[2:] {
		if slot.Kind == syntax.NodeSymbol {
			st.consumed[slot] = struct{}{}
		}
	}

	r := RangeOf(n)
	st.consumed[name] = struct{}{}
	st = declare(st, name.Text)
	out.Tokens = append(out.Tokens, Token{
		Kind:          Struct,
		Scope:         Global(r.End),
		Name:          name.Text,
		Info:          n.Text,
		Documentation: docFor(st, r),
		Place:         r,
		Selection:     RangeOf(name),
	})
	return st
}

func (a *Annotator) isScoping(name string) bool {
	_, ok := a.scoping[name]
	return ok
}

// declare adds name to the declared set; names are never retracted
func declare(st passState, name string) passState {
	if _, seen := st.declared[name]; !seen {
		st.declared[name] = struct{}{}
		st.names = append(st.names, name)
	}
	return st
}

// docFor returns the pending docstring if its comment ends on the line the
// declaration starts on
func docFor(st passState, r Range) string {
	if st.doc != nil && st.doc.end.Line == r.Start.Line {
		return st.doc.text
	}
	return ""
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
