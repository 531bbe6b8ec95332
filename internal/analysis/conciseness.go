package analysis

import (
	"fmt"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

const (
	maxFunctionLength    = 50
	maxNestedDepth       = 3
	maxComprehensionSize = 50
	minDuplicateBlock    = 4
	duplicateThreshold   = 0.8
)

// ConcisenessAnalyzer scores how economically the snippet expresses itself:
// line and function length, nesting depth, duplicated blocks and oversized
// comprehensions.
type ConcisenessAnalyzer struct {
	analyzerBase
}

func NewConcisenessAnalyzer() *ConcisenessAnalyzer {
	a := &ConcisenessAnalyzer{}
	a.init("conciseness", CategoryQuality, metricWeights{
		"long_lines":          0.30,
		"nested_structures":   0.25,
		"repeated_code":       0.25,
		"comprehension_usage": 0.20,
	})
	return a
}

func (a *ConcisenessAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"line_score":          100.0,
			"nesting_score":       100.0,
			"repetition_score":    100.0,
			"comprehension_score": 100.0,
			"max_nesting_depth":   0,
			"duplicate_pairs":     0,
		})
	}

	var findings []Finding
	var suggestions []string

	lineScore, lengthFindings := a.scoreLength(tree)
	findings = append(findings, lengthFindings...)

	maxDepth, nestingScore, nestingFindings := a.scoreNesting(tree)
	findings = append(findings, nestingFindings...)

	pairs, repetitionScore, duplicateFindings := a.scoreDuplication(tree.Lines)
	findings = append(findings, duplicateFindings...)

	comprehensionScore, comprehensionFindings := a.scoreComprehensions(tree)
	findings = append(findings, comprehensionFindings...)

	if lineScore < 100 {
		suggestions = append(suggestions, fmt.Sprintf("Keep functions under %d lines and break up long lines", maxFunctionLength))
	}
	if maxDepth > maxNestedDepth {
		suggestions = append(suggestions, "Extract deeply nested logic into separate functions")
	}
	if pairs > 0 {
		suggestions = append(suggestions, "Extract duplicated code into reusable functions")
	}
	if comprehensionScore < 100 {
		suggestions = append(suggestions, "Break complex comprehensions into multiple steps")
	}

	score := Aggregate([]MetricScore{
		{Value: lineScore, Weight: a.weights["long_lines"]},
		{Value: nestingScore, Weight: a.weights["nested_structures"]},
		{Value: repetitionScore, Weight: a.weights["repeated_code"]},
		{Value: comprehensionScore, Weight: a.weights["comprehension_usage"]},
	})

	details := map[string]interface{}{
		"line_score":          Round2(lineScore),
		"nesting_score":       Round2(nestingScore),
		"repetition_score":    Round2(repetitionScore),
		"comprehension_score": Round2(comprehensionScore),
		"max_nesting_depth":   maxDepth,
		"duplicate_pairs":     pairs,
	}

	return a.result(score, findings, suggestions, details)
}

// scoreLength penalizes lines beyond the PEP 8 limit and functions whose
// bodies outgrow a single screen.
func (a *ConcisenessAnalyzer) scoreLength(tree *pysrc.Module) (float64, []Finding) {
	var findings []Finding
	longLines := 0
	for i, line := range tree.Lines {
		if len(line) > maxLineLength {
			longLines++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Line is too long (%d characters)", len(line)),
				Line:    i + 1,
			})
		}
	}

	longFunctions := 0
	for _, fn := range tree.Functions() {
		if lines := pysrc.BodyLines(fn); lines > maxFunctionLength {
			longFunctions++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' is too long (%d lines)", fn.Name, lines),
				Line:    fn.Line,
			})
		}
	}

	return Clamp(100-float64(longLines)*5-float64(longFunctions)*10, 0, 100), findings
}

// scoreNesting walks the control-flow constructs and charges for every level
// past the threshold of the deepest chain.
func (a *ConcisenessAnalyzer) scoreNesting(tree *pysrc.Module) (int, float64, []Finding) {
	var findings []Finding
	maxDepth := 0

	var walk func(n *pysrc.Node, depth int)
	walk = func(n *pysrc.Node, depth int) {
		for _, child := range n.Children {
			d := depth
			switch child.Kind {
			case pysrc.KindLoop, pysrc.KindConditional, pysrc.KindTry, pysrc.KindWith:
				d++
				if d > maxDepth {
					maxDepth = d
				}
				if d > maxNestedDepth {
					findings = append(findings, Finding{
						Message: fmt.Sprintf("Deeply nested %s detected (depth: %d)", nestingNoun(child.Kind), d),
						Line:    child.Line,
					})
				}
			}
			walk(child, d)
		}
	}
	walk(tree.Root, 0)

	if maxDepth <= maxNestedDepth {
		return maxDepth, 100, findings
	}
	return maxDepth, Clamp(100-float64(maxDepth-maxNestedDepth)*15, 0, 100), findings
}

// scoreDuplication splits the snippet into blank-line-delimited blocks and
// compares every pair; near-identical blocks of four or more lines count as
// duplication. Each pair is reported once.
func (a *ConcisenessAnalyzer) scoreDuplication(lines []string) (int, float64, []Finding) {
	blocks := codeBlocks(lines)
	if len(blocks) == 0 {
		return 0, 100, nil
	}

	var findings []Finding
	pairs := 0
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			if similarityRatio(blocks[i].content, blocks[j].content) > duplicateThreshold {
				pairs++
				findings = append(findings, Finding{
					Message: fmt.Sprintf("Similar code blocks found at lines %d-%d and %d-%d",
						blocks[i].start, blocks[i].end, blocks[j].start, blocks[j].end),
					Line: blocks[i].start,
				})
			}
		}
	}

	return pairs, penalize(pairs, 15), findings
}

func (a *ConcisenessAnalyzer) scoreComprehensions(tree *pysrc.Module) (float64, []Finding) {
	comprehensions := tree.Comprehensions()
	if len(comprehensions) == 0 {
		return 100, nil
	}

	var findings []Finding
	complexCount := 0
	for _, comp := range comprehensions {
		if len(comp.Text) > maxComprehensionSize {
			complexCount++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Complex %s comprehension detected", comp.Name),
				Line:    comp.Line,
			})
		}
	}

	return penalize(complexCount, 10), findings
}

type codeBlock struct {
	content string
	start   int // 1-based first line
	end     int // 1-based last line
}

// codeBlocks groups consecutive non-blank lines into comparison units,
// keeping only groups of minDuplicateBlock lines or more.
func codeBlocks(lines []string) []codeBlock {
	var blocks []codeBlock
	var current []string
	start := 0

	flush := func(end int) {
		if len(current) >= minDuplicateBlock {
			blocks = append(blocks, codeBlock{
				content: strings.Join(current, "\n"),
				start:   start,
				end:     end,
			})
		}
		current = nil
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(i)
			continue
		}
		if len(current) == 0 {
			start = i + 1
		}
		current = append(current, line)
	}
	flush(len(lines))

	return blocks
}

func nestingNoun(k pysrc.Kind) string {
	switch k {
	case pysrc.KindLoop:
		return "loop"
	case pysrc.KindConditional:
		return "conditional"
	case pysrc.KindTry:
		return "try block"
	default:
		return "with block"
	}
}
