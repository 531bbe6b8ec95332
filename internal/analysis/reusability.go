package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

const (
	minFunctionStatements = 3
	maxFunctionStatements = 50
	maxClassAttributes    = 10
	minDocstringLength    = 10
	maxDefDependencies    = 5
)

// docstringSections are the headings a reusable definition's docstring is
// expected to carry.
var docstringSections = []string{"Args", "Returns", "Raises"}

var numberLiteral = regexp.MustCompile(`(^|[^\w.])(\d+(\.\d+)?)`)

// ReusabilityAnalyzer scores how readily the snippet's definitions could be
// lifted into a shared module: signature size, body length, class cohesion,
// docstring completeness and coupling.
type ReusabilityAnalyzer struct {
	analyzerBase
}

func NewReusabilityAnalyzer() *ReusabilityAnalyzer {
	a := &ReusabilityAnalyzer{}
	a.init("reusability", CategoryQuality, metricWeights{
		"function_design": 0.30,
		"class_design":    0.25,
		"documentation":   0.25,
		"modularity":      0.20,
	})
	return a
}

func (a *ReusabilityAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"function_score":      100.0,
			"class_score":         100.0,
			"documentation_score": 100.0,
			"modularity_score":    100.0,
			"function_count":      0,
			"class_count":         0,
		})
	}

	functions := tree.Functions()
	classes := tree.Classes()

	var findings []Finding
	var suggestions []string

	functionScore, functionFindings, functionSuggestions := a.scoreFunctionDesign(functions)
	findings = append(findings, functionFindings...)
	suggestions = append(suggestions, functionSuggestions...)

	classScore, classFindings, classSuggestions := a.scoreClassDesign(tree, classes)
	findings = append(findings, classFindings...)
	suggestions = append(suggestions, classSuggestions...)

	docScore, docFindings, docSuggestions := a.scoreDocumentation(tree, functions, classes)
	findings = append(findings, docFindings...)
	suggestions = append(suggestions, docSuggestions...)

	modularityScore, modularityFindings := a.scoreModularity(tree, functions, classes)
	findings = append(findings, modularityFindings...)

	if len(functions) == 0 && len(classes) == 0 {
		suggestions = append(suggestions, "Consider organizing code into reusable functions and classes")
	}
	if len(functions) > 0 && len(classes) == 0 {
		suggestions = append(suggestions, "Consider grouping related functions into classes")
	}
	if modularityScore < 100 {
		suggestions = append(suggestions, "Consider reducing dependencies through better encapsulation")
	}

	score := Aggregate([]MetricScore{
		{Value: functionScore, Weight: a.weights["function_design"]},
		{Value: classScore, Weight: a.weights["class_design"]},
		{Value: docScore, Weight: a.weights["documentation"]},
		{Value: modularityScore, Weight: a.weights["modularity"]},
	})

	details := map[string]interface{}{
		"function_score":      Round2(functionScore),
		"class_score":         Round2(classScore),
		"documentation_score": Round2(docScore),
		"modularity_score":    Round2(modularityScore),
		"function_count":      len(functions),
		"class_count":         len(classes),
	}

	return a.result(score, findings, suggestions, details)
}

// scoreFunctionDesign charges one issue for oversized signatures or bodies
// and half an issue for stub-sized functions.
func (a *ReusabilityAnalyzer) scoreFunctionDesign(functions []*pysrc.Node) (float64, []Finding, []string) {
	if len(functions) == 0 {
		return 100, nil, nil
	}

	var findings []Finding
	var suggestions []string
	issues := 0.0
	for _, fn := range functions {
		if len(fn.Params) > maxParams {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' has too many parameters (%d)", fn.Name, len(fn.Params)),
				Line:    fn.Line,
			})
			suggestions = append(suggestions, fmt.Sprintf("Consider grouping parameters in '%s' using a class or data structure", fn.Name))
		}
		statements := bodyStatements(fn)
		if statements > maxFunctionStatements {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' might be too long (%d statements)", fn.Name, statements),
				Line:    fn.Line,
			})
			suggestions = append(suggestions, fmt.Sprintf("Consider breaking '%s' into smaller, more focused functions", fn.Name))
		} else if statements < minFunctionStatements {
			issues += 0.5
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' might be too short (%d statements)", fn.Name, statements),
				Line:    fn.Line,
			})
		}
	}
	return Clamp(100-issues*10, 0, 100), findings, suggestions
}

func (a *ReusabilityAnalyzer) scoreClassDesign(tree *pysrc.Module, classes []*pysrc.Node) (float64, []Finding, []string) {
	if len(classes) == 0 {
		return 100, nil, nil
	}

	var findings []Finding
	var suggestions []string
	issues := 0.0
	for _, class := range classes {
		methods := tree.Methods(class)
		if len(methods) > maxClassMethods {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' has too many methods (%d)", class.Name, len(methods)),
				Line:    class.Line,
			})
			suggestions = append(suggestions, fmt.Sprintf("Consider splitting '%s' into multiple classes", class.Name))
		} else if len(methods) < minClassMethods {
			issues += 0.5
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' has too few methods (%d)", class.Name, len(methods)),
				Line:    class.Line,
			})
		}
		if attrs := classAttributes(class); len(attrs) > maxClassAttributes {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' has too many attributes (%d)", class.Name, len(attrs)),
				Line:    class.Line,
			})
			suggestions = append(suggestions, fmt.Sprintf("Consider grouping attributes in '%s' into logical subclasses", class.Name))
		}
	}
	return Clamp(100-issues*10, 0, 100), findings, suggestions
}

// scoreDocumentation charges for missing and stub docstrings; section gaps
// only surface as suggestions.
func (a *ReusabilityAnalyzer) scoreDocumentation(tree *pysrc.Module, functions, classes []*pysrc.Node) (float64, []Finding, []string) {
	var findings []Finding
	var suggestions []string
	issues := 0

	check := func(def *pysrc.Node, kind string) {
		doc := tree.Docstring(def)
		if doc == nil {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("%s '%s' lacks a docstring", kind, def.Name),
				Line:    def.Line,
			})
			suggestions = append(suggestions, fmt.Sprintf("Add a descriptive docstring to %s '%s'", strings.ToLower(kind), def.Name))
			return
		}
		if len(doc.Text) < minDocstringLength {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("%s '%s' has a short docstring", kind, def.Name),
				Line:    doc.Line,
			})
		}
		var missing []string
		lower := strings.ToLower(doc.Text)
		for _, section := range docstringSections {
			if !strings.Contains(lower, strings.ToLower(section)) {
				missing = append(missing, section)
			}
		}
		if len(missing) > 0 {
			suggestions = append(suggestions, fmt.Sprintf("Add %s sections to %s '%s' docstring",
				strings.Join(missing, ", "), strings.ToLower(kind), def.Name))
		}
	}

	for _, fn := range functions {
		check(fn, "Function")
	}
	for _, class := range classes {
		check(class, "Class")
	}

	return penalize(issues, 15), findings, suggestions
}

// scoreModularity charges definitions that reach for too many other names
// and functions whose return expressions embed magic numbers.
func (a *ReusabilityAnalyzer) scoreModularity(tree *pysrc.Module, functions, classes []*pysrc.Node) (float64, []Finding) {
	var findings []Finding
	issues := 0

	defs := append(append([]*pysrc.Node{}, functions...), classes...)
	for _, def := range defs {
		deps := map[string]struct{}{}
		pysrc.Walk(def, func(n *pysrc.Node) bool {
			if n.Kind == pysrc.KindCall && n.Name != "" && !strings.Contains(n.Name, ".") {
				deps[n.Name] = struct{}{}
			}
			return true
		})
		for _, base := range def.Bases {
			if !strings.Contains(base, ".") {
				deps[base] = struct{}{}
			}
		}
		if len(deps) > maxDefDependencies {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("'%s' depends on too many other names (%d)", def.Name, len(deps)),
				Line:    def.Line,
			})
		}
	}

	for _, fn := range functions {
		pysrc.Walk(fn, func(n *pysrc.Node) bool {
			if n.Kind != pysrc.KindReturn {
				return true
			}
			for _, m := range numberLiteral.FindAllStringSubmatch(n.Text, -1) {
				if v := m[2]; v != "0" && v != "1" {
					issues++
					findings = append(findings, Finding{
						Message: fmt.Sprintf("Function '%s' returns a hard-coded value (%s)", fn.Name, v),
						Line:    n.Line,
					})
					break
				}
			}
			return true
		})
	}

	return penalize(issues, 10), findings
}

// bodyStatements counts the statements directly inside a definition,
// docstring included, header expressions excluded.
func bodyStatements(def *pysrc.Node) int {
	count := 0
	for _, child := range def.Children {
		switch child.Kind {
		case pysrc.KindCall, pysrc.KindLambda, pysrc.KindComprehension, pysrc.KindDecorator, pysrc.KindComment:
		default:
			count++
		}
	}
	return count
}

// classAttributes returns the distinct names assigned directly in a class
// body.
func classAttributes(class *pysrc.Node) map[string]struct{} {
	attrs := map[string]struct{}{}
	for _, child := range class.Children {
		if child.Kind == pysrc.KindAssignment && child.Name != "" && !strings.Contains(child.Name, ".") {
			attrs[child.Name] = struct{}{}
		}
	}
	return attrs
}
