package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

const (
	maxLineLength = 79
	indentSize    = 4
)

// namePatterns are the PEP 8 naming conventions checked per definition and
// assignment target.
var namePatterns = map[string]*regexp.Regexp{
	"variable": regexp.MustCompile(`^[a-z_][a-z0-9_]*$`),
	"constant": regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`),
	"class":    regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`),
	"function": regexp.MustCompile(`^[a-z_][a-z0-9_]*$`),
}

// FormattingAnalyzer scores PEP 8 style compliance: line length, indentation,
// naming conventions, import grouping and whitespace hygiene.
type FormattingAnalyzer struct {
	analyzerBase
}

func NewFormattingAnalyzer() *FormattingAnalyzer {
	a := &FormattingAnalyzer{}
	a.init("formatting", CategoryQuality, metricWeights{
		"line_length":         0.30,
		"indentation":         0.25,
		"naming_conventions":  0.20,
		"import_organization": 0.15,
		"whitespace":          0.10,
	})
	return a
}

func (a *FormattingAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"line_length_score":         100.0,
			"indentation_score":         100.0,
			"naming_score":              100.0,
			"import_organization_score": 100.0,
			"whitespace_score":          100.0,
			"violation_count":           0,
		})
	}

	var findings []Finding

	lineScore, lineFindings := a.checkLineLength(tree.Lines)
	findings = append(findings, lineFindings...)

	indentScore, indentFindings := a.checkIndentation(tree.Lines)
	findings = append(findings, indentFindings...)

	namingScore, namingFindings := a.checkNaming(tree)
	findings = append(findings, namingFindings...)

	importScore, importFindings := a.checkImportOrganization(tree)
	findings = append(findings, importFindings...)

	spaceScore, spaceFindings := a.checkWhitespace(tree.Lines)
	findings = append(findings, spaceFindings...)

	score := Aggregate([]MetricScore{
		{Value: lineScore, Weight: a.weights["line_length"]},
		{Value: indentScore, Weight: a.weights["indentation"]},
		{Value: namingScore, Weight: a.weights["naming_conventions"]},
		{Value: importScore, Weight: a.weights["import_organization"]},
		{Value: spaceScore, Weight: a.weights["whitespace"]},
	})

	var suggestions []string
	if lineScore < 100 {
		suggestions = append(suggestions, fmt.Sprintf("Keep lines at or below %d characters", maxLineLength))
	}
	if indentScore < 100 {
		suggestions = append(suggestions, fmt.Sprintf("Use consistent indentation (%d spaces)", indentSize))
	}
	if namingScore < 100 {
		suggestions = append(suggestions, "Follow PEP 8 naming conventions for classes, functions, and variables")
	}
	if importScore < 100 {
		suggestions = append(suggestions, "Group imports together at the top of the file")
	}
	if spaceScore < 100 {
		suggestions = append(suggestions, "Remove trailing whitespace and stray tabs")
	}

	details := map[string]interface{}{
		"line_length_score":         Round2(lineScore),
		"indentation_score":         Round2(indentScore),
		"naming_score":              Round2(namingScore),
		"import_organization_score": Round2(importScore),
		"whitespace_score":          Round2(spaceScore),
		"violation_count":           len(findings),
	}

	return a.result(score, findings, suggestions, details)
}

func (a *FormattingAnalyzer) checkLineLength(lines []string) (float64, []Finding) {
	var findings []Finding
	for i, line := range lines {
		if len(line) > maxLineLength {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Line too long (%d > %d characters)", len(line), maxLineLength),
				Line:    i + 1,
			})
		}
	}
	return penalize(len(findings), 5), findings
}

func (a *FormattingAnalyzer) checkIndentation(lines []string) (float64, []Finding) {
	var findings []Finding
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent%indentSize != 0 {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Indentation is not a multiple of %d", indentSize),
				Line:    i + 1,
			})
		}
	}
	return penalize(len(findings), 10), findings
}

func (a *FormattingAnalyzer) checkNaming(tree *pysrc.Module) (float64, []Finding) {
	var findings []Finding

	for _, class := range tree.Classes() {
		if !namePatterns["class"].MatchString(class.Name) {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class name '%s' doesn't follow conventions", class.Name),
				Line:    class.Line,
			})
		}
	}
	for _, fn := range tree.Functions() {
		if !namePatterns["function"].MatchString(fn.Name) {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function name '%s' doesn't follow conventions", fn.Name),
				Line:    fn.Line,
			})
		}
	}
	pysrc.Walk(tree.Root, func(n *pysrc.Node) bool {
		if n.Kind != pysrc.KindAssignment || n.Name == "" || strings.Contains(n.Name, ".") {
			return true
		}
		if isUpperName(n.Name) {
			if !namePatterns["constant"].MatchString(n.Name) {
				findings = append(findings, Finding{
					Message: fmt.Sprintf("Constant name '%s' doesn't follow conventions", n.Name),
					Line:    n.Line,
				})
			}
		} else if !namePatterns["variable"].MatchString(n.Name) {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Variable name '%s' doesn't follow conventions", n.Name),
				Line:    n.Line,
			})
		}
		return true
	})

	return penalize(len(findings), 5), findings
}

// checkImportOrganization flags gaps between consecutive import statements;
// imports interleaved with other code lower the score.
func (a *FormattingAnalyzer) checkImportOrganization(tree *pysrc.Module) (float64, []Finding) {
	imports := tree.Imports()
	if len(imports) == 0 {
		return 100, nil
	}

	var findings []Finding
	lastLine := -1
	for _, imp := range imports {
		if lastLine > -1 && imp.Line > lastLine+1 {
			findings = append(findings, Finding{
				Message: "Imports are not grouped together",
				Line:    imp.Line,
			})
		}
		lastLine = imp.Line
	}
	return penalize(len(findings), 10), findings
}

func (a *FormattingAnalyzer) checkWhitespace(lines []string) (float64, []Finding) {
	var findings []Finding
	for i, line := range lines {
		if strings.TrimRight(line, " \t") != line {
			findings = append(findings, Finding{Message: "Trailing whitespace", Line: i + 1})
		}
		if strings.Contains(strings.TrimSpace(line), "  ") {
			findings = append(findings, Finding{Message: "Multiple spaces used", Line: i + 1})
		}
		if strings.Contains(line, "\t") {
			findings = append(findings, Finding{Message: "Tab character used for spacing", Line: i + 1})
		}
	}
	return penalize(len(findings), 5), findings
}

// isUpperName reports whether a name is written in constant style: at least
// one letter, all of them uppercase.
func isUpperName(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
