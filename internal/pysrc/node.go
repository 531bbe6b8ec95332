// Package pysrc parses Python source text into a lightweight syntax tree.
//
// The parser is structural, not grammatical: it recognizes statement kinds,
// indentation-delimited blocks, calls, imports, comments and string literals,
// which is the level of detail the scoring heuristics operate on. It does not
// evaluate expressions and never executes the analyzed code.
package pysrc

// Kind tags a syntax node with its structural category.
type Kind string

const (
	KindModule        Kind = "module"
	KindClass         Kind = "class"
	KindFunction      Kind = "function"
	KindLoop          Kind = "loop"
	KindConditional   Kind = "conditional"
	KindTry           Kind = "try"
	KindWith          Kind = "with"
	KindCall          Kind = "call"
	KindImport        Kind = "import"
	KindAssignment    Kind = "assignment"
	KindComprehension Kind = "comprehension"
	KindLambda        Kind = "lambda"
	KindDecorator     Kind = "decorator"
	KindDocstring     Kind = "docstring"
	KindComment       Kind = "comment"
	KindReturn        Kind = "return"
	KindGlobal        Kind = "global"
	KindExpression    Kind = "expression"
)

// Node is a single element of the parsed tree. A node is built once per
// Parse call and never mutated afterwards.
type Node struct {
	Kind     Kind
	Name     string
	Line     int // 1-based source line of the node's first token
	Col      int // leading indentation width in spaces
	EndLine  int // last source line covered by the node's block
	Children []*Node

	// Kind-specific attributes. Zero values mean "not applicable".
	Params     []string // function: declared parameter names
	Bases      []string // class: base class expressions
	Decorators []string // function/class: decorator names, dotted
	Keywords   []string // call: keyword-argument names in order
	Text       string   // comment, docstring, comprehension or call argument text
	Code       string   // inline comment: the statement text preceding the #
	Async      bool     // function: declared with async def
	BoolOps    int      // conditional/loop: boolean operator operand count - 1
	Branches   int      // conditional: elif/else branch count; try: handler count
}

// Walk traverses the tree rooted at n depth-first in pre-order, visiting
// every node exactly once. If visit returns false the node's children are
// skipped.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		Walk(child, visit)
	}
}

// Module is the root of a parsed snippet together with the raw source it was
// built from. Lines are kept verbatim so text-level checks (line length,
// trailing whitespace) can run without re-reading the input.
type Module struct {
	Root  *Node
	Lines []string
}

// collect walks the tree and returns all nodes of the given kind in
// pre-order.
func (m *Module) collect(kind Kind) []*Node {
	var out []*Node
	Walk(m.Root, func(n *Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Functions returns every function definition in the snippet, including
// methods and nested functions.
func (m *Module) Functions() []*Node { return m.collect(KindFunction) }

// Classes returns every class definition in the snippet.
func (m *Module) Classes() []*Node { return m.collect(KindClass) }

// Calls returns every call site in the snippet.
func (m *Module) Calls() []*Node { return m.collect(KindCall) }

// Imports returns one node per imported module, with Name set to the dotted
// module path.
func (m *Module) Imports() []*Node { return m.collect(KindImport) }

// Comments returns every comment in the snippet, docstrings excluded.
func (m *Module) Comments() []*Node { return m.collect(KindComment) }

// Comprehensions returns every list/set/dict comprehension and generator
// expression found in the snippet.
func (m *Module) Comprehensions() []*Node { return m.collect(KindComprehension) }

// Docstring returns the documentation block opening the given definition
// node, or nil if the definition has none. For the module docstring pass
// m.Root.
func (m *Module) Docstring(def *Node) *Node {
	if def == nil {
		return nil
	}
	for _, child := range def.Children {
		switch child.Kind {
		case KindDocstring:
			return child
		case KindComment, KindDecorator, KindCall, KindLambda, KindComprehension:
			continue
		default:
			return nil
		}
	}
	return nil
}

// Methods returns the function definitions directly inside a class body.
func (m *Module) Methods(class *Node) []*Node {
	var out []*Node
	for _, child := range class.Children {
		if child.Kind == KindFunction {
			out = append(out, child)
		}
	}
	return out
}

// NestingDepth returns the deepest loop/conditional/try/with nesting level
// inside the given node's block, counting the node itself when it is a
// nesting construct.
func NestingDepth(n *Node) int {
	depth := 0
	if nests(n.Kind) {
		depth = 1
	}
	max := depth
	for _, child := range n.Children {
		d := depth + NestingDepth(child)
		if d > max {
			max = d
		}
	}
	return max
}

func nests(k Kind) bool {
	switch k {
	case KindLoop, KindConditional, KindTry, KindWith:
		return true
	}
	return false
}

// BodyLines returns the number of source lines a definition spans.
func BodyLines(n *Node) int {
	if n.EndLine < n.Line {
		return 0
	}
	return n.EndLine - n.Line + 1
}
