package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

const (
	maxClassMethods = 10
	minClassMethods = 2
	maxBaseClasses  = 3
	maxParams       = 5
	maxFanOut       = 5
	maxComplexity   = 10
	importSpread    = 5
	importDeadline  = 20
	maxModuleVars   = 5
)

// StructureAnalyzer scores how the snippet is organized: class shape,
// function signatures and complexity, import placement, scope hygiene and
// coupling between definitions.
type StructureAnalyzer struct {
	analyzerBase
}

func NewStructureAnalyzer() *StructureAnalyzer {
	a := &StructureAnalyzer{}
	a.init("structure", CategoryQuality, metricWeights{
		"class_structure":       0.30,
		"function_organization": 0.25,
		"import_structure":      0.20,
		"scope_usage":           0.15,
		"dependencies":          0.10,
	})
	return a
}

func (a *StructureAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"class_structure_score":       100.0,
			"function_organization_score": 100.0,
			"import_structure_score":      100.0,
			"scope_usage_score":           100.0,
			"dependency_score":            100.0,
			"stats":                       map[string]interface{}{"class_count": 0, "function_count": 0, "dependency_count": 0},
		})
	}

	var findings []Finding

	classes := tree.Classes()
	functions := tree.Functions()

	classScore, classFindings := a.scoreClasses(tree, classes)
	findings = append(findings, classFindings...)

	complexity := map[string]int{}
	functionScore, functionFindings := a.scoreFunctions(functions, complexity)
	findings = append(findings, functionFindings...)

	importScore, importFindings := a.scoreImports(tree)
	findings = append(findings, importFindings...)

	scopeScore, scopeFindings := a.scoreScope(tree)
	findings = append(findings, scopeFindings...)

	graph := dependencyGraph(classes, functions)
	dependencyScore, dependencyFindings := a.scoreDependencies(graph)
	findings = append(findings, dependencyFindings...)

	score := Aggregate([]MetricScore{
		{Value: classScore, Weight: a.weights["class_structure"]},
		{Value: functionScore, Weight: a.weights["function_organization"]},
		{Value: importScore, Weight: a.weights["import_structure"]},
		{Value: scopeScore, Weight: a.weights["scope_usage"]},
		{Value: dependencyScore, Weight: a.weights["dependencies"]},
	})

	var suggestions []string
	if classScore < 100 {
		suggestions = append(suggestions, fmt.Sprintf("Keep classes focused with %d-%d methods", minClassMethods, maxClassMethods))
	}
	if functionScore < 100 {
		suggestions = append(suggestions, fmt.Sprintf("Limit function parameters to %d or fewer", maxParams))
	}
	if importScore < 100 {
		suggestions = append(suggestions, "Group all imports at the beginning of the file")
	}
	if scopeScore < 100 {
		suggestions = append(suggestions, "Minimize use of global variables and module-level state")
	}
	if dependencyScore < 100 {
		suggestions = append(suggestions, "Reduce coupling between components by minimizing dependencies")
	}

	details := map[string]interface{}{
		"class_structure_score":       Round2(classScore),
		"function_organization_score": Round2(functionScore),
		"import_structure_score":      Round2(importScore),
		"scope_usage_score":           Round2(scopeScore),
		"dependency_score":            Round2(dependencyScore),
		"cyclomatic_complexity":       complexity,
		"stats": map[string]interface{}{
			"class_count":      len(classes),
			"function_count":   len(functions),
			"dependency_count": len(graph),
		},
	}

	return a.result(score, findings, suggestions, details)
}

func (a *StructureAnalyzer) scoreClasses(tree *pysrc.Module, classes []*pysrc.Node) (float64, []Finding) {
	if len(classes) == 0 {
		return 100, nil
	}

	var findings []Finding
	for _, class := range classes {
		if len(class.Bases) > maxBaseClasses {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' has too many base classes", class.Name),
				Line:    class.Line,
			})
		}
		methods := tree.Methods(class)
		if len(methods) > maxClassMethods {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' has too many methods (%d)", class.Name, len(methods)),
				Line:    class.Line,
			})
		} else if len(methods) < minClassMethods {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Class '%s' might be too small (%d methods)", class.Name, len(methods)),
				Line:    class.Line,
			})
		}
	}
	return penalize(len(findings), 10), findings
}

// scoreFunctions checks signatures, explicit returns and cyclomatic
// complexity. The per-function complexity values are collected into the
// provided map for the details section.
func (a *StructureAnalyzer) scoreFunctions(functions []*pysrc.Node, complexity map[string]int) (float64, []Finding) {
	if len(functions) == 0 {
		return 100, nil
	}

	var findings []Finding
	for _, fn := range functions {
		if len(fn.Params) > maxParams {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' has too many parameters (%d)", fn.Name, len(fn.Params)),
				Line:    fn.Line,
			})
		}
		if !hasReturn(fn) && !strings.HasPrefix(fn.Name, "__") {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' lacks explicit return statement", fn.Name),
				Line:    fn.Line,
			})
		}
		cc := cyclomaticComplexity(fn)
		complexity[fn.Name] = cc
		if cc > maxComplexity {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Function '%s' has high cyclomatic complexity (%d)", fn.Name, cc),
				Line:    fn.Line,
			})
		}
	}
	return penalize(len(findings), 5), findings
}

func (a *StructureAnalyzer) scoreImports(tree *pysrc.Module) (float64, []Finding) {
	imports := tree.Imports()
	if len(imports) == 0 {
		return 100, nil
	}

	first, last := imports[0].Line, imports[0].Line
	for _, imp := range imports {
		if imp.Line < first {
			first = imp.Line
		}
		if imp.Line > last {
			last = imp.Line
		}
	}

	var findings []Finding
	if last-first > importSpread {
		findings = append(findings, Finding{Message: "Imports are not properly grouped together", Line: last})
	}
	if last > importDeadline {
		findings = append(findings, Finding{Message: "Imports appear too late in the code", Line: last})
	}
	return penalize(len(findings), 15), findings
}

func (a *StructureAnalyzer) scoreScope(tree *pysrc.Module) (float64, []Finding) {
	var findings []Finding

	globals := map[string]struct{}{}
	pysrc.Walk(tree.Root, func(n *pysrc.Node) bool {
		if n.Kind == pysrc.KindGlobal {
			for _, name := range n.Keywords {
				globals[name] = struct{}{}
			}
		}
		return true
	})
	if len(globals) > 0 {
		findings = append(findings, Finding{
			Message: fmt.Sprintf("Found %d global variables - consider refactoring", len(globals)),
		})
	}

	if vars := moduleLevelVars(tree.Root); len(vars) > maxModuleVars {
		findings = append(findings, Finding{
			Message: fmt.Sprintf("Too many module-level variables (%d)", len(vars)),
		})
	}

	return penalize(len(findings), 10), findings
}

// scoreDependencies flags definitions coupled to more than maxFanOut other
// names, and pairs of functions that call each other.
func (a *StructureAnalyzer) scoreDependencies(graph map[string]map[string]struct{}) (float64, []Finding) {
	if len(graph) == 0 {
		return 100, nil
	}

	var findings []Finding
	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if deps := graph[name]; len(deps) > maxFanOut {
			findings = append(findings, Finding{
				Message: fmt.Sprintf("'%s' has too many dependencies (%d)", name, len(deps)),
			})
		}
	}
	for i, left := range names {
		for _, right := range names[i+1:] {
			if _, lr := graph[left][right]; !lr {
				continue
			}
			if _, rl := graph[right][left]; rl {
				findings = append(findings, Finding{
					Message: fmt.Sprintf("'%s' and '%s' call each other", left, right),
				})
			}
		}
	}

	return penalize(len(findings), 10), findings
}

func hasReturn(fn *pysrc.Node) bool {
	found := false
	pysrc.Walk(fn, func(n *pysrc.Node) bool {
		if n != fn && n.Kind == pysrc.KindFunction {
			return false
		}
		if n.Kind == pysrc.KindReturn {
			found = true
		}
		return !found
	})
	return found
}

// cyclomaticComplexity is 1 plus the number of branch points plus one less
// than the operand count of each boolean expression.
func cyclomaticComplexity(fn *pysrc.Node) int {
	cc := 1
	pysrc.Walk(fn, func(n *pysrc.Node) bool {
		if n != fn && n.Kind == pysrc.KindFunction {
			return false
		}
		switch n.Kind {
		case pysrc.KindConditional:
			cc += 1 + n.Branches
		case pysrc.KindLoop:
			cc++
		case pysrc.KindTry:
			cc += n.Branches
		}
		cc += n.BoolOps
		return true
	})
	return cc
}

// dependencyGraph maps each class to its base names and each function to the
// undotted names it calls.
func dependencyGraph(classes, functions []*pysrc.Node) map[string]map[string]struct{} {
	graph := map[string]map[string]struct{}{}
	add := func(owner, dep string) {
		if strings.Contains(dep, ".") || dep == "" {
			return
		}
		if graph[owner] == nil {
			graph[owner] = map[string]struct{}{}
		}
		graph[owner][dep] = struct{}{}
	}

	for _, class := range classes {
		for _, base := range class.Bases {
			add(class.Name, base)
		}
	}
	for _, fn := range functions {
		pysrc.Walk(fn, func(n *pysrc.Node) bool {
			if n.Kind == pysrc.KindCall {
				add(fn.Name, n.Name)
			}
			return true
		})
	}
	return graph
}

// moduleLevelVars collects distinct undotted assignment targets outside any
// function or class body.
func moduleLevelVars(root *pysrc.Node) map[string]struct{} {
	vars := map[string]struct{}{}
	var walk func(n *pysrc.Node)
	walk = func(n *pysrc.Node) {
		for _, child := range n.Children {
			switch child.Kind {
			case pysrc.KindFunction, pysrc.KindClass:
				continue
			case pysrc.KindAssignment:
				if child.Name != "" && !strings.Contains(child.Name, ".") {
					vars[child.Name] = struct{}{}
				}
			}
			walk(child)
		}
	}
	walk(root)
	return vars
}
