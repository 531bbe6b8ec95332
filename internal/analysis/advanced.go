package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

// Feature tables for advanced technique detection.
var (
	advancedDecorators = map[string]struct{}{
		"property": {}, "classmethod": {}, "staticmethod": {},
		"abstractmethod": {}, "contextmanager": {}, "cached_property": {},
	}
	advancedMagicMethods = map[string]struct{}{
		"__enter__": {}, "__exit__": {}, "__iter__": {}, "__next__": {},
		"__getitem__": {}, "__setitem__": {}, "__call__": {},
	}
	designPatterns = map[string][]string{
		"Factory":   {"create", "factory", "build"},
		"Singleton": {"instance", "getinstance"},
		"Observer":  {"notify", "subscribe", "observer"},
		"Strategy":  {"strategy", "algorithm"},
		"Decorator": {"wrap", "decorate"},
	}
	advancedLibraries = map[string][]string{
		"ml":           {"sklearn", "tensorflow", "torch", "keras", "xgboost", "lightgbm", "catboost", "fastai"},
		"stats":        {"scipy", "statsmodels", "pingouin"},
		"geo":          {"geopandas", "shapely", "rasterio", "folium"},
		"optimization": {"numba", "cython", "dask", "ray", "multiprocessing", "concurrent", "joblib"},
	}
)

const (
	techniqueBaseline    = 50
	libraryCategoryBonus = 10
	maxLibraryBonus      = 30
)

var (
	quotedSpan   = regexp.MustCompile(`"[^"\n]*"|'[^'\n]*'`)
	arithmeticOp = regexp.MustCompile(`[\w)\]]\s*(\*\*|//|[-+*/%])\s*[\w(\[]|[-+*/%]=`)
	yieldWord    = regexp.MustCompile(`\byield\b`)
	awaitWord    = regexp.MustCompile(`\bawait\b`)
)

// AdvancedTechniquesAnalyzer rewards decorators, magic methods, design
// patterns, optimization idioms and specialized libraries. Its sub-metrics
// start from a 50 baseline: this analyzer measures sophistication, so absence
// of a construct is itself informative rather than neutral.
type AdvancedTechniquesAnalyzer struct {
	analyzerBase
}

func NewAdvancedTechniquesAnalyzer() *AdvancedTechniquesAnalyzer {
	a := &AdvancedTechniquesAnalyzer{}
	a.init("advanced_techniques", CategoryQuality, metricWeights{
		"decorators":      0.25,
		"magic_methods":   0.25,
		"design_patterns": 0.25,
		"optimizations":   0.25,
	})
	return a
}

type algorithmInfo struct {
	name       string
	kind       string
	complexity string
	line       int
}

func (a *AdvancedTechniquesAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(techniqueBaseline, []Finding{*parseFailure}, nil, map[string]interface{}{
			"decorator_score":    float64(techniqueBaseline),
			"method_score":       float64(techniqueBaseline),
			"pattern_score":      float64(techniqueBaseline),
			"optimization_score": float64(techniqueBaseline),
			"library_bonus":      0.0,
			"library_categories": map[string][]string{},
		})
	}

	decorators := a.collectDecorators(tree)
	magicMethods := a.collectMagicMethods(tree)
	patterns := a.collectPatterns(tree)
	optimizations, algorithms := a.collectOptimizations(tree)
	libCategories := a.collectLibraries(tree)

	decoratorScore := diversityScore(distinct(decorators), 10)
	methodScore := diversityScore(len(magicMethods), 10)
	patternScore := diversityScore(len(patterns), 15)
	optimizationScore := diversityScore(len(optimizations), 15)

	libBonus := Clamp(float64(len(libCategories))*libraryCategoryBonus, 0, maxLibraryBonus)

	base := Aggregate([]MetricScore{
		{Value: decoratorScore, Weight: a.weights["decorators"]},
		{Value: methodScore, Weight: a.weights["magic_methods"]},
		{Value: patternScore, Weight: a.weights["design_patterns"]},
		{Value: optimizationScore, Weight: a.weights["optimizations"]},
	})
	score := Clamp(Round2(base+libBonus), 0, 100)

	var findings []Finding
	if len(decorators) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d decorator uses", len(decorators))})
	}
	if len(magicMethods) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d magic method implementations", countOf(magicMethods))})
	}
	if len(patterns) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Detected %d design pattern implementations", len(patterns))})
	}
	if len(optimizations) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d optimization techniques", countOf(optimizations))})
	}
	if len(libCategories) > 0 {
		libs := 0
		for _, names := range libCategories {
			libs += len(names)
		}
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d advanced libraries across %d categories", libs, len(libCategories))})
	}

	var suggestions []string
	if len(decorators) == 0 {
		suggestions = append(suggestions, "Consider using decorators for code reuse and clean implementation")
	}
	if len(magicMethods) == 0 {
		suggestions = append(suggestions, "Consider implementing magic methods for more Pythonic code")
	}
	if len(patterns) == 0 {
		suggestions = append(suggestions, "Consider using design patterns for better code organization")
	}
	if len(optimizations) == 0 {
		suggestions = append(suggestions, "Consider using generators and comprehensions for better performance")
	}

	details := map[string]interface{}{
		"decorator_score":    decoratorScore,
		"method_score":       methodScore,
		"pattern_score":      patternScore,
		"optimization_score": optimizationScore,
		"library_bonus":      libBonus,
		"library_categories": libCategories,
		"design_patterns":    sortedKeys(patterns),
		"optimizations":      sortedKeys(optimizations),
	}
	if len(algorithms) > 0 {
		algoDetails := make([]map[string]interface{}, 0, len(algorithms))
		for _, algo := range algorithms {
			algoDetails = append(algoDetails, map[string]interface{}{
				"name":       algo.name,
				"type":       algo.kind,
				"complexity": algo.complexity,
				"line":       algo.line,
			})
		}
		details["algorithms"] = algoDetails
	}

	return a.result(score, findings, suggestions, details)
}

// collectDecorators returns every advanced decorator applied to a function or
// class; dotted decorators match on their final segment.
func (a *AdvancedTechniquesAnalyzer) collectDecorators(tree *pysrc.Module) []string {
	var found []string
	record := func(names []string) {
		for _, deco := range names {
			name := deco
			if dot := strings.LastIndex(name, "."); dot >= 0 {
				name = name[dot+1:]
			}
			if _, ok := advancedDecorators[name]; ok {
				found = append(found, name)
			}
		}
	}
	for _, fn := range tree.Functions() {
		record(fn.Decorators)
	}
	for _, class := range tree.Classes() {
		record(class.Decorators)
	}
	return found
}

func (a *AdvancedTechniquesAnalyzer) collectMagicMethods(tree *pysrc.Module) map[string]int {
	methods := map[string]int{}
	for _, fn := range tree.Functions() {
		if _, ok := advancedMagicMethods[fn.Name]; ok {
			methods[fn.Name]++
		}
	}
	return methods
}

// collectPatterns matches design pattern keywords against each class name and
// class body text.
func (a *AdvancedTechniquesAnalyzer) collectPatterns(tree *pysrc.Module) map[string]int {
	patterns := map[string]int{}
	for _, class := range tree.Classes() {
		name := strings.ToLower(class.Name)
		body := strings.ToLower(classText(tree, class))
		for pattern, keywords := range designPatterns {
			for _, kw := range keywords {
				if strings.Contains(name, kw) || strings.Contains(body, kw) {
					patterns[pattern]++
					break
				}
			}
		}
	}
	return patterns
}

// collectOptimizations gathers the distinct optimization idiom types present:
// generators, comprehensions, async code and hand-written algorithms.
func (a *AdvancedTechniquesAnalyzer) collectOptimizations(tree *pysrc.Module) (map[string]int, []algorithmInfo) {
	types := map[string]int{}

	pysrc.Walk(tree.Root, func(n *pysrc.Node) bool {
		switch n.Kind {
		case pysrc.KindDocstring, pysrc.KindComment:
			return false
		}
		text := stripQuoted(n.Text)
		if yieldWord.MatchString(text) {
			types["generator"]++
		}
		if awaitWord.MatchString(text) {
			types["async"]++
		}
		return true
	})

	for _, comp := range tree.Comprehensions() {
		if comp.Name == "generator" {
			types["generator"]++
		} else {
			types["comprehension"]++
		}
	}
	for _, fn := range tree.Functions() {
		if fn.Async {
			types["async"]++
		}
	}
	for _, imp := range tree.Imports() {
		if importRoot(imp.Name) == "asyncio" {
			types["async"]++
		}
	}

	algorithms := a.collectAlgorithms(tree)
	for range algorithms {
		types["algorithm"]++
	}

	return types, algorithms
}

// collectAlgorithms flags functions that look like hand-written algorithms: a
// loop or self-recursion combined with arithmetic.
func (a *AdvancedTechniquesAnalyzer) collectAlgorithms(tree *pysrc.Module) []algorithmInfo {
	var algorithms []algorithmInfo
	for _, fn := range tree.Functions() {
		var hasLoop, hasRecursion, hasMath bool
		pysrc.Walk(fn, func(n *pysrc.Node) bool {
			switch n.Kind {
			case pysrc.KindDocstring, pysrc.KindComment:
				return false
			case pysrc.KindLoop:
				hasLoop = true
			case pysrc.KindCall:
				if n.Name == fn.Name {
					hasRecursion = true
				}
			}
			if !hasMath && arithmeticOp.MatchString(stripQuoted(n.Text)) {
				hasMath = true
			}
			return true
		})
		if (hasLoop || hasRecursion) && hasMath {
			algorithms = append(algorithms, algorithmInfo{
				name:       fn.Name,
				kind:       algorithmKind(fn),
				complexity: loopComplexity(fn),
				line:       fn.Line,
			})
		}
	}
	return algorithms
}

// collectLibraries buckets advanced library imports by category.
func (a *AdvancedTechniquesAnalyzer) collectLibraries(tree *pysrc.Module) map[string][]string {
	seen := map[string]map[string]struct{}{}
	for _, imp := range tree.Imports() {
		root := importRoot(imp.Name)
		for category, libs := range advancedLibraries {
			for _, lib := range libs {
				if root != lib {
					continue
				}
				if seen[category] == nil {
					seen[category] = map[string]struct{}{}
				}
				seen[category][root] = struct{}{}
			}
		}
	}

	categories := map[string][]string{}
	for category, libs := range seen {
		names := make([]string, 0, len(libs))
		for lib := range libs {
			names = append(names, lib)
		}
		sort.Strings(names)
		categories[category] = names
	}
	return categories
}

func algorithmKind(fn *pysrc.Node) string {
	name := strings.ToLower(fn.Name)
	switch {
	case strings.Contains(name, "sort"):
		return "sorting"
	case strings.Contains(name, "search") || strings.Contains(name, "find"):
		return "search"
	}
	graph := false
	pysrc.Walk(fn, func(n *pysrc.Node) bool {
		id := strings.ToLower(n.Name)
		if strings.Contains(id, "graph") || strings.Contains(id, "adj") || strings.Contains(id, "visit") {
			graph = true
		}
		return !graph
	})
	if graph {
		return "graph"
	}
	return "other"
}

// loopComplexity estimates big-O from the deepest loop nesting in a function.
func loopComplexity(fn *pysrc.Node) string {
	var walk func(n *pysrc.Node, depth int) int
	walk = func(n *pysrc.Node, depth int) int {
		if n.Kind == pysrc.KindLoop {
			depth++
		}
		max := depth
		for _, c := range n.Children {
			if d := walk(c, depth); d > max {
				max = d
			}
		}
		return max
	}
	switch depth := walk(fn, 0); depth {
	case 0:
		return "O(1)"
	case 1:
		return "O(n)"
	case 2:
		return "O(n^2)"
	default:
		return fmt.Sprintf("O(n^%d)", depth)
	}
}

// classText joins the raw source lines a class spans.
func classText(tree *pysrc.Module, class *pysrc.Node) string {
	if class.Line < 1 || class.EndLine > len(tree.Lines) || class.EndLine < class.Line {
		return ""
	}
	return strings.Join(tree.Lines[class.Line-1:class.EndLine], "\n")
}

// diversityScore rewards each distinct occurrence above the sophistication
// baseline, capping at 100.
func diversityScore(distinctCount int, reward float64) float64 {
	if distinctCount == 0 {
		return techniqueBaseline
	}
	return bonus(techniqueBaseline, distinctCount, reward)
}

func distinct(values []string) int {
	set := map[string]struct{}{}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return len(set)
}

func countOf(m map[string]int) int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func importRoot(name string) string {
	if dot := strings.Index(name, "."); dot >= 0 {
		return name[:dot]
	}
	return name
}

func stripQuoted(text string) string {
	if !strings.ContainsAny(text, `"'`) {
		return text
	}
	return quotedSpan.ReplaceAllString(text, "")
}
