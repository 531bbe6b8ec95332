package pysrc

import "strings"

var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true,
	"in": true, "is": true, "lambda": true, "nonlocal": true, "not": true,
	"or": true, "pass": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true,
}

type frame struct {
	node       *Node
	bodyIndent int // -1 until the first body statement fixes it
	lastIf     *Node
	lastTry    *Node
	lastLoop   *Node
}

// Parse builds the syntax tree for one snippet. The returned Module owns its
// tree; callers must not retain nodes across invocations that reuse the same
// source.
func Parse(src string) (*Module, error) {
	lines, stmts, err := scan(src)
	if err != nil {
		return nil, err
	}

	root := &Node{Kind: KindModule, Line: 1, EndLine: len(lines)}
	m := &Module{Root: root, Lines: make([]string, len(lines))}
	for i, rl := range lines {
		m.Lines[i] = rl.text
	}

	stack := []*frame{{node: root, bodyIndent: -1}}
	var pendingDeco []*Node

	pop := func() {
		stack = stack[:len(stack)-1]
	}
	push := func(n *Node) {
		stack = append(stack, &frame{node: n, bodyIndent: -1})
	}
	extend := func(endLine int) {
		for _, fr := range stack {
			if fr.node.EndLine < endLine {
				fr.node.EndLine = endLine
			}
		}
	}

	resolve := func(s stmt) (*frame, error) {
		for {
			top := stack[len(stack)-1]
			if top.bodyIndent == -1 {
				if top.node == root {
					top.bodyIndent = s.indent
					return top, nil
				}
				if s.indent > top.node.Col {
					top.bodyIndent = s.indent
					return top, nil
				}
				// Inline or empty block body; the statement belongs further out.
				pop()
				continue
			}
			if s.indent == top.bodyIndent {
				return top, nil
			}
			if s.indent > top.bodyIndent {
				return nil, &ParseError{Line: s.line, Reason: "unexpected indent"}
			}
			if top.node == root {
				// Dedent below the module baseline; rebase instead of failing,
				// notebook cells are often pasted with uneven margins.
				top.bodyIndent = s.indent
				return top, nil
			}
			pop()
		}
	}

	for _, s := range stmts {
		code := strings.TrimSpace(s.code)
		if code == "" {
			continue
		}
		fr, err := resolve(s)
		if err != nil {
			return nil, err
		}
		parent := fr.node

		async := false
		rest := code
		if strings.HasPrefix(rest, "async ") {
			async = true
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "async "))
		}

		switch {
		case strings.HasPrefix(rest, "def "):
			n := &Node{Kind: KindFunction, Name: identAfter(rest, len("def ")), Line: s.line, Col: s.indent, EndLine: s.endLine, Async: async}
			n.Params = parseParams(parenSpan(rest))
			n.Decorators = decoratorNames(pendingDeco)
			n.Children = append(n.Children, pendingDeco...)
			pendingDeco = nil
			// Only default argument expressions may hold calls; the def name
			// itself is not one.
			collectExpressions(n, parenSpan(rest), s.line)
			parent.Children = append(parent.Children, n)
			fr.lastIf, fr.lastTry, fr.lastLoop = nil, nil, nil
			extend(s.endLine)
			push(n)

		case strings.HasPrefix(rest, "class "):
			n := &Node{Kind: KindClass, Name: identAfter(rest, len("class ")), Line: s.line, Col: s.indent, EndLine: s.endLine}
			n.Bases = parseBases(parenSpan(rest))
			n.Decorators = decoratorNames(pendingDeco)
			n.Children = append(n.Children, pendingDeco...)
			pendingDeco = nil
			parent.Children = append(parent.Children, n)
			fr.lastIf, fr.lastTry, fr.lastLoop = nil, nil, nil
			extend(s.endLine)
			push(n)

		case strings.HasPrefix(rest, "@"):
			name := rest[1:]
			if cut := strings.IndexByte(name, '('); cut >= 0 {
				name = name[:cut]
			}
			d := &Node{Kind: KindDecorator, Name: strings.TrimSpace(name), Line: s.line, Col: s.indent, EndLine: s.endLine}
			pendingDeco = append(pendingDeco, d)
			extend(s.endLine)

		case hasKeyword(rest, "try"):
			n := &Node{Kind: KindTry, Name: "try", Line: s.line, Col: s.indent, EndLine: s.endLine}
			parent.Children = append(parent.Children, n)
			fr.lastTry = n
			extend(s.endLine)
			push(n)

		case hasKeyword(rest, "except") || hasKeyword(rest, "finally"):
			if fr.lastTry != nil {
				if hasKeyword(rest, "except") {
					fr.lastTry.Branches++
				}
				extend(s.endLine)
				push(fr.lastTry)
			} else {
				n := &Node{Kind: KindExpression, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: rest}
				parent.Children = append(parent.Children, n)
				extend(s.endLine)
			}

		case hasKeyword(rest, "for") || hasKeyword(rest, "while"):
			name := "for"
			if hasKeyword(rest, "while") {
				name = "while"
			}
			n := &Node{Kind: KindLoop, Name: name, Line: s.line, Col: s.indent, EndLine: s.endLine, BoolOps: countBoolOps(rest)}
			collectExpressions(n, rest, s.line)
			parent.Children = append(parent.Children, n)
			fr.lastLoop = n
			extend(s.endLine)
			push(n)

		case hasKeyword(rest, "if"):
			n := &Node{Kind: KindConditional, Name: "if", Line: s.line, Col: s.indent, EndLine: s.endLine, BoolOps: countBoolOps(rest)}
			collectExpressions(n, rest, s.line)
			parent.Children = append(parent.Children, n)
			fr.lastIf = n
			extend(s.endLine)
			push(n)

		case hasKeyword(rest, "elif"):
			if fr.lastIf != nil {
				fr.lastIf.Branches++
				fr.lastIf.BoolOps += countBoolOps(rest)
				collectExpressions(fr.lastIf, rest, s.line)
				extend(s.endLine)
				push(fr.lastIf)
			} else {
				n := &Node{Kind: KindExpression, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: rest}
				parent.Children = append(parent.Children, n)
				extend(s.endLine)
			}

		case hasKeyword(rest, "else"):
			target := fr.lastIf
			if target == nil {
				target = fr.lastTry
			}
			if target == nil {
				target = fr.lastLoop
			}
			if target != nil {
				if target.Kind == KindConditional {
					target.Branches++
				}
				extend(s.endLine)
				push(target)
			}

		case hasKeyword(rest, "with"):
			n := &Node{Kind: KindWith, Name: "with", Line: s.line, Col: s.indent, EndLine: s.endLine}
			collectExpressions(n, rest, s.line)
			parent.Children = append(parent.Children, n)
			extend(s.endLine)
			push(n)

		case strings.HasPrefix(rest, "import "):
			for _, part := range splitTopLevel(rest[len("import "):], ',') {
				module, alias := splitAlias(part)
				if module == "" {
					continue
				}
				n := &Node{Kind: KindImport, Name: module, Text: alias, Line: s.line, Col: s.indent, EndLine: s.endLine}
				parent.Children = append(parent.Children, n)
			}
			extend(s.endLine)

		case strings.HasPrefix(rest, "from "):
			body := rest[len("from "):]
			cut := strings.Index(body, " import ")
			if cut < 0 {
				extend(s.endLine)
				break
			}
			source := strings.TrimSpace(body[:cut])
			names := strings.Trim(strings.TrimSpace(body[cut+len(" import "):]), "()")
			for _, part := range splitTopLevel(names, ',') {
				name, alias := splitAlias(part)
				if name == "" {
					continue
				}
				full := source + "." + name
				if name == "*" {
					full = source
				}
				n := &Node{Kind: KindImport, Name: full, Text: alias, Line: s.line, Col: s.indent, EndLine: s.endLine}
				parent.Children = append(parent.Children, n)
			}
			extend(s.endLine)

		case hasKeyword(rest, "return"):
			n := &Node{Kind: KindReturn, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: strings.TrimSpace(strings.TrimPrefix(rest, "return"))}
			collectExpressions(n, rest, s.line)
			parent.Children = append(parent.Children, n)
			extend(s.endLine)

		case strings.HasPrefix(rest, "global "):
			n := &Node{Kind: KindGlobal, Line: s.line, Col: s.indent, EndLine: s.endLine}
			for _, name := range splitTopLevel(rest[len("global "):], ',') {
				n.Keywords = append(n.Keywords, strings.TrimSpace(name))
			}
			if len(n.Keywords) > 0 {
				n.Name = n.Keywords[0]
			}
			parent.Children = append(parent.Children, n)
			extend(s.endLine)

		case isBareLiteral(rest):
			if docstringPosition(parent.Children) {
				n := &Node{Kind: KindDocstring, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: s.str}
				parent.Children = append(parent.Children, n)
			} else {
				n := &Node{Kind: KindExpression, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: rest}
				parent.Children = append(parent.Children, n)
			}
			extend(s.endLine)

		default:
			var n *Node
			if target, ok := assignTarget(rest); ok {
				n = &Node{Kind: KindAssignment, Name: target, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: rest}
			} else {
				n = &Node{Kind: KindExpression, Line: s.line, Col: s.indent, EndLine: s.endLine, Text: rest}
			}
			collectExpressions(n, rest, s.line)
			parent.Children = append(parent.Children, n)
			extend(s.endLine)
		}
	}

	// Orphaned decorators at the end of the snippet keep their place in the
	// tree so traversals still see them.
	if len(pendingDeco) > 0 {
		root.Children = append(root.Children, pendingDeco...)
	}

	for _, rl := range lines {
		if rl.comment == "" || rl.startsIn {
			continue
		}
		kind := "standalone"
		code := ""
		if rl.hasCode {
			kind = "inline"
			code = strings.TrimSpace(strings.TrimSuffix(rl.text, "#"+rl.comment))
		}
		root.Children = append(root.Children, &Node{
			Kind: KindComment, Name: kind, Line: rl.num, Col: rl.indent,
			EndLine: rl.num, Text: strings.TrimSpace(rl.comment), Code: code,
		})
	}

	return m, nil
}

// hasKeyword reports whether code starts with the statement keyword followed
// by a non-identifier boundary.
func hasKeyword(code, kw string) bool {
	if !strings.HasPrefix(code, kw) {
		return false
	}
	return len(code) == len(kw) || !isIdentChar(code[len(kw)])
}

// docstringPosition reports whether a bare string literal appearing next
// would be the first statement of the enclosing body. Decorator and
// header-expression children do not count as body statements.
func docstringPosition(children []*Node) bool {
	for _, c := range children {
		switch c.Kind {
		case KindComment, KindDecorator, KindCall, KindLambda, KindComprehension:
		default:
			return false
		}
	}
	return true
}

// identAfter extracts the identifier starting at offset in code.
func identAfter(code string, offset int) string {
	rest := strings.TrimLeft(code[offset:], " ")
	end := 0
	for end < len(rest) && isIdentChar(rest[end]) {
		end++
	}
	return rest[:end]
}

// parenSpan returns the text between the first top-level pair of parentheses,
// or "" when the header has none.
func parenSpan(code string) string {
	open := strings.IndexByte(code, '(')
	if open < 0 {
		return ""
	}
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return code[open+1 : i]
			}
		}
	}
	return code[open+1:]
}

// parseParams splits a def header's parameter list into bare names,
// annotations and defaults stripped.
func parseParams(span string) []string {
	if strings.TrimSpace(span) == "" {
		return nil
	}
	var params []string
	for _, part := range splitTopLevel(span, ',') {
		p := strings.TrimSpace(part)
		p = strings.TrimLeft(p, "*")
		if cut := strings.IndexByte(p, ':'); cut >= 0 {
			p = p[:cut]
		}
		if cut := strings.IndexByte(p, '='); cut >= 0 {
			p = p[:cut]
		}
		p = strings.TrimSpace(p)
		if p != "" && p != "/" {
			params = append(params, p)
		}
	}
	return params
}

// parseBases splits a class header's base list, dropping keyword arguments
// such as metaclass=.
func parseBases(span string) []string {
	if strings.TrimSpace(span) == "" {
		return nil
	}
	var bases []string
	for _, part := range splitTopLevel(span, ',') {
		p := strings.TrimSpace(part)
		if p == "" || strings.Contains(p, "=") {
			continue
		}
		bases = append(bases, p)
	}
	return bases
}

// splitTopLevel splits s on sep occurrences outside any bracket pair.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// splitAlias resolves "name as alias" to (name, alias); without an alias the
// binding is the trailing path segment.
func splitAlias(part string) (string, string) {
	p := strings.TrimSpace(part)
	if p == "" {
		return "", ""
	}
	if cut := strings.Index(p, " as "); cut >= 0 {
		name := strings.TrimSpace(p[:cut])
		alias := strings.TrimSpace(p[cut+len(" as "):])
		return name, alias
	}
	if dot := strings.LastIndexByte(p, '.'); dot >= 0 {
		return p, p[dot+1:]
	}
	return p, p
}

func decoratorNames(decos []*Node) []string {
	if len(decos) == 0 {
		return nil
	}
	names := make([]string, len(decos))
	for i, d := range decos {
		names[i] = d.Name
	}
	return names
}

// countBoolOps counts boolean operator joints in a header condition, which is
// the operand arity minus one summed over the chained operators.
func countBoolOps(code string) int {
	return countWord(code, "and") + countWord(code, "or")
}

func countWord(s, word string) int {
	count := 0
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] != word {
			continue
		}
		before := i == 0 || !isIdentChar(s[i-1])
		after := i+len(word) == len(s) || !isIdentChar(s[i+len(word)])
		if before && after {
			count++
		}
	}
	return count
}

func containsWord(s, word string) bool { return countWord(s, word) > 0 }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// isBareLiteral reports whether the masked statement is a single string
// literal, the docstring shape.
func isBareLiteral(code string) bool {
	rest := strings.TrimLeft(code, "rRbBuUfF")
	if len(code)-len(rest) > 2 || len(rest) < 2 {
		return false
	}
	quote := rest[0]
	if quote != '\'' && quote != '"' {
		return false
	}
	if rest[len(rest)-1] != quote {
		return false
	}
	return !strings.ContainsAny(rest[1:len(rest)-1], "'\"")
}

// assignTarget finds a top-level assignment and returns its first bound name.
func assignTarget(code string) (string, bool) {
	depth := 0
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(code) && code[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("!<>=:", code[i-1]) >= 0 {
				continue
			}
			j := i
			for j > 0 && strings.IndexByte("+-*/%&|^@<>", code[j-1]) >= 0 {
				j--
			}
			return firstTargetIdent(code[:j]), true
		}
	}
	return "", false
}

// firstTargetIdent extracts the leading dotted identifier from an assignment
// target expression.
func firstTargetIdent(target string) string {
	t := strings.TrimSpace(target)
	t = strings.TrimLeft(t, "(")
	end := 0
	for end < len(t) && (isIdentChar(t[end]) || t[end] == '.') {
		end++
	}
	return strings.TrimRight(t[:end], ".")
}

// collectExpressions scans a statement's masked code for calls,
// comprehensions and lambdas, attaching one child node per occurrence.
func collectExpressions(parent *Node, code string, line int) {
	i := 0
	for i < len(code) {
		c := code[i]

		if isIdentStart(c) || (c == '.' && i > 0 && (code[i-1] == ')' || code[i-1] == ']' || code[i-1] == '"' || code[i-1] == '\'')) {
			start := i
			if c == '.' {
				i++
			}
			for i < len(code) && (isIdentChar(code[i]) || code[i] == '.') {
				i++
			}
			name := strings.Trim(code[start:i], ".")
			if name == "" {
				continue
			}
			if i < len(code) && code[i] == '(' && !pyKeywords[name] {
				span, keywords := callArgs(code, i)
				parent.Children = append(parent.Children, &Node{
					Kind: KindCall, Name: name, Line: line, EndLine: line,
					Col: parent.Col, Text: span, Keywords: keywords,
				})
			}
			if name == "lambda" {
				parent.Children = append(parent.Children, &Node{
					Kind: KindLambda, Name: "lambda", Line: line, EndLine: line, Col: parent.Col,
				})
			}
			continue
		}

		if c == '(' || c == '[' || c == '{' {
			span := bracketSpan(code, i)
			if containsWord(span, "for") && containsWord(span, "in") {
				name := "generator"
				switch c {
				case '[':
					name = "list"
				case '{':
					name = "set"
					if hasTopLevelColon(span) {
						name = "dict"
					}
				}
				parent.Children = append(parent.Children, &Node{
					Kind: KindComprehension, Name: name, Line: line, EndLine: line,
					Col: parent.Col, Text: span,
				})
			}
		}
		i++
	}
}

// callArgs returns the argument span starting at the opening parenthesis and
// the keyword-argument names used directly in the call.
func callArgs(code string, open int) (string, []string) {
	depth := 0
	end := len(code)
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				end = i
				i = len(code)
			}
		}
	}
	span := code[open+1 : end]

	var keywords []string
	depth = 0
	i := 0
	for i < len(span) {
		switch span[i] {
		case '(', '[', '{':
			depth++
			i++
		case ')', ']', '}':
			depth--
			i++
		default:
			if depth == 0 && isIdentStart(span[i]) {
				start := i
				for i < len(span) && isIdentChar(span[i]) {
					i++
				}
				if i < len(span) && span[i] == '=' && (i+1 >= len(span) || span[i+1] != '=') {
					keywords = append(keywords, span[start:i])
				}
			} else {
				i++
			}
		}
	}
	return span, keywords
}

// bracketSpan returns the text inside the bracket pair opening at index open.
func bracketSpan(code string, open int) string {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return code[open+1 : i]
			}
		}
	}
	return code[open+1:]
}

func hasTopLevelColon(span string) bool {
	depth := 0
	for i := 0; i < len(span); i++ {
		switch span[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}
