package pysrc

import (
	"fmt"
	"strings"
)

// ParseError reports a structural problem in the analyzed source. The engine
// treats it as a recoverable condition, never as a crash.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
}

// rawLine carries the facts about one physical source line that text-level
// checks need.
type rawLine struct {
	num      int
	text     string
	indent   int
	hasTab   bool
	blank    bool
	hasCode  bool
	comment  string // text after '#', leading marker stripped
	startsIn bool   // line begins inside a triple-quoted string
}

// stmt is one logical statement: physical lines joined across bracket,
// backslash and triple-quote continuations, with comments removed and string
// contents neutralized so structural characters inside literals cannot
// confuse later scanning.
type stmt struct {
	line    int
	endLine int
	indent  int
	code    string
	str     string // raw content of the leading literal when the statement is a bare string
}

// scan tokenizes src into physical line facts and logical statements.
func scan(src string) ([]rawLine, []stmt, error) {
	physical := strings.Split(src, "\n")
	lines := make([]rawLine, 0, len(physical))
	var stmts []stmt

	var triple byte // active triple-quote character, 0 when outside
	tripleLine := 0
	depth := 0 // open bracket depth across lines
	backslash := false

	var cur *stmt
	var parts []string
	var lit strings.Builder
	litActive := false

	flush := func(end int) {
		if cur == nil {
			return
		}
		cur.endLine = end
		cur.code = strings.Join(parts, " ")
		cur.str = lit.String()
		stmts = append(stmts, *cur)
		cur = nil
		parts = nil
		lit.Reset()
		litActive = false
	}

	for i, text := range physical {
		text = strings.TrimSuffix(text, "\r")
		num := i + 1

		rl := rawLine{num: num, text: text, startsIn: triple != 0}
		j := 0
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			if text[j] == '\t' {
				rl.hasTab = true
			}
			j++
		}
		rl.indent = j
		trimmed := strings.TrimSpace(text)
		rl.blank = trimmed == ""
		rl.hasCode = !rl.blank && !strings.HasPrefix(trimmed, "#")

		continuing := triple != 0 || depth > 0 || backslash
		backslash = false
		if litActive && rl.startsIn {
			lit.WriteByte('\n')
		}

		if !continuing && cur == nil && !rl.blank && !strings.HasPrefix(trimmed, "#") {
			cur = &stmt{line: num, indent: rl.indent}
			// A statement opening with a (possibly prefixed) quote is a
			// literal candidate; capture its raw content for docstring use.
			rest := strings.TrimLeft(trimmed, "rRbBuUfF")
			if len(rest) > 0 && (rest[0] == '\'' || rest[0] == '"') && len(trimmed)-len(rest) <= 2 {
				litActive = true
			}
		}

		var code strings.Builder
		var single byte
		k := 0
		for k < len(text) {
			c := text[k]

			if triple != 0 {
				if c == triple && strings.HasPrefix(text[k:], strings.Repeat(string(c), 3)) {
					triple = 0
					code.WriteByte(c)
					k += 3
					continue
				}
				if litActive {
					lit.WriteByte(c)
				}
				code.WriteByte(maskByte(c))
				k++
				continue
			}

			if single != 0 {
				if c == '\\' && k+1 < len(text) {
					if litActive {
						lit.WriteByte(c)
						lit.WriteByte(text[k+1])
					}
					code.WriteString("__")
					k += 2
					continue
				}
				if c == single {
					single = 0
					code.WriteByte(c)
					k++
					continue
				}
				if litActive {
					lit.WriteByte(c)
				}
				code.WriteByte(maskByte(c))
				k++
				continue
			}

			switch c {
			case '#':
				rl.comment = strings.TrimPrefix(text[k:], "#")
				k = len(text)
			case '\'', '"':
				if strings.HasPrefix(text[k:], strings.Repeat(string(c), 3)) {
					triple = c
					tripleLine = num
					code.WriteByte(c)
					k += 3
				} else {
					single = c
					code.WriteByte(c)
					k++
				}
			case '(', '[', '{':
				depth++
				code.WriteByte(c)
				k++
			case ')', ']', '}':
				depth--
				if depth < 0 {
					return nil, nil, &ParseError{Line: num, Reason: "unbalanced closing bracket"}
				}
				code.WriteByte(c)
				k++
			case '\\':
				if k == len(text)-1 {
					backslash = true
					k++
				} else {
					code.WriteByte(c)
					k++
				}
			default:
				code.WriteByte(c)
				k++
			}
		}
		// An unterminated single-quoted string cannot span lines; drop the
		// open state and keep scanning best-effort.
		single = 0

		segment := strings.TrimSpace(code.String())
		if cur != nil && segment != "" {
			parts = append(parts, segment)
		}
		lines = append(lines, rl)

		if cur != nil && triple == 0 && depth == 0 && !backslash {
			flush(num)
		}
	}

	if triple != 0 {
		return nil, nil, &ParseError{Line: tripleLine, Reason: "unterminated triple-quoted string"}
	}
	if depth > 0 {
		return nil, nil, &ParseError{Line: len(physical), Reason: "unclosed bracket at end of input"}
	}
	flush(len(physical))

	return lines, stmts, nil
}

// maskByte neutralizes characters inside string literals that would otherwise
// be read as structure, separators included. Letters and digits pass through
// so keyword values like how="left" stay inspectable.
func maskByte(c byte) byte {
	switch c {
	case '(', ')', '[', ']', '{', '}', '#', '\'', '"', '\\', ',', ':', ';', '=':
		return '_'
	}
	return c
}
