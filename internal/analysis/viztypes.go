package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

// vizBaseline is the floor for presentation sub-metrics: a notebook with no
// visualization work at all is suboptimal, not neutral.
const vizBaseline = 60

// plottingLibraries maps each plotting library root to the aliases its
// imports and call sites commonly use.
var plottingLibraries = map[string][]string{
	"matplotlib": {"pyplot", "plt"},
	"seaborn":    {"sns"},
	"plotly":     {"express", "graph_objects", "px", "go"},
	"bokeh":      {"figure", "show"},
	"altair":     {"alt"},
}

// plotTypes maps chart-type categories to the call names that draw them.
var plotTypes = map[string][]string{
	"scatter":   {"scatter", "scatterplot", "scatter_plot"},
	"line":      {"plot", "lineplot", "line_plot"},
	"bar":       {"bar", "barh", "barplot", "bar_plot"},
	"histogram": {"hist", "histogram"},
	"box":       {"box", "boxplot", "box_plot"},
	"heatmap":   {"heatmap", "imshow"},
	"pie":       {"pie", "pieplot", "pie_plot"},
	"violin":    {"violin", "violinplot", "violin_plot"},
	"kde":       {"kdeplot", "kde_plot"},
	"area":      {"area", "areaplot", "area_plot"},
}

// appropriatePlots lists which chart types suit each inferred data type.
var appropriatePlots = map[string][]string{
	"categorical": {"bar", "box", "violin", "pie"},
	"numerical":   {"histogram", "kde", "box", "violin"},
	"temporal":    {"line", "area"},
	"correlation": {"scatter", "heatmap"},
}

// plotAlternatives suggests better chart families per data type.
var plotAlternatives = map[string]string{
	"categorical": "bar, box, or violin plot",
	"numerical":   "histogram, scatter, or line plot",
	"temporal":    "line plot or time series visualization",
	"correlation": "scatter plot or heatmap",
}

var interactiveLibraries = map[string]struct{}{
	"plotly": {}, "bokeh": {}, "holoviews": {}, "ipywidgets": {},
}

// dataKwarg pulls the value bound to an x=, y= or data= keyword argument.
var dataKwarg = regexp.MustCompile(`\b(x|y|data)\s*=\s*['"]?([A-Za-z_][\w.]*)`)

// VizTypesAnalyzer judges whether a snippet plots at all, how varied its
// chart types are, whether chart types fit the data they are fed and whether
// any interactivity is offered.
type VizTypesAnalyzer struct {
	analyzerBase
}

func NewVizTypesAnalyzer() *VizTypesAnalyzer {
	a := &VizTypesAnalyzer{}
	a.init("viz_types", CategoryPresentation, metricWeights{
		"library_diversity": 0.20,
		"chart_variety":     0.30,
		"appropriateness":   0.30,
		"interactivity":     0.20,
	})
	return a
}

type plotCall struct {
	chartType string
	method    string
	base      string
	line      int
	node      *pysrc.Node
}

func (a *VizTypesAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(vizBaseline, []Finding{*parseFailure}, nil, map[string]interface{}{
			"library_score":         float64(vizBaseline),
			"variety_score":         float64(vizBaseline),
			"appropriateness_score": float64(vizBaseline),
			"interactivity_score":   float64(vizBaseline),
			"libraries":             []string{},
			"plot_types":            []string{},
			"interactive_libraries": []string{},
			"plot_count":            0,
		})
	}

	aliases := vizAliases(tree)
	libraries := a.collectLibraries(tree, aliases)
	plots := collectPlots(tree)
	interactive := a.collectInteractive(tree)

	chartTypes := map[string]struct{}{}
	for _, p := range plots {
		chartTypes[p.chartType] = struct{}{}
	}

	var findings []Finding
	var suggestions []string
	issues := 0
	for _, p := range plots {
		dataType := inferDataType(p.node)
		if dataType != "" && !suitedTo(dataType, p.chartType) {
			issues++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("A %s chart is a poor fit for %s data", p.chartType, dataType),
				Line:    p.line,
			})
			if alt, ok := plotAlternatives[dataType]; ok {
				suggestions = append(suggestions, fmt.Sprintf("Line %d: Consider a %s for %s data", p.line, alt, dataType))
			}
		}
		if p.chartType == "pie" && positionalFirstArg(p.node.Text) {
			issues++
			suggestions = append(suggestions, fmt.Sprintf("Line %d: Pie charts are best used for parts of a whole", p.line))
		}
		if p.chartType == "scatter" && !hasKeywordArg(p.node, "x") && !hasKeywordArg(p.node, "y") {
			issues++
			suggestions = append(suggestions, fmt.Sprintf("Line %d: Scatter plots should specify x and y variables", p.line))
		}
	}

	libraryScore := signalScore(len(libraries), 25)
	varietyScore := signalScore(len(chartTypes), 20)
	appropriatenessScore := float64(vizBaseline)
	if len(plots) > 0 {
		appropriatenessScore = penalize(issues, 10)
	}
	interactivityScore := signalScore(len(interactive), 20)

	score := Aggregate([]MetricScore{
		{Value: libraryScore, Weight: a.weights["library_diversity"]},
		{Value: varietyScore, Weight: a.weights["chart_variety"]},
		{Value: appropriatenessScore, Weight: a.weights["appropriateness"]},
		{Value: interactivityScore, Weight: a.weights["interactivity"]},
	})

	if len(libraries) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d visualization libraries in use", len(libraries))})
	}
	if len(chartTypes) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Detected %d different plot types", len(chartTypes))})
	}

	if len(libraries) == 0 {
		suggestions = append(suggestions, "Consider using visualization libraries for data presentation")
	}
	if len(chartTypes) < 2 {
		suggestions = append(suggestions, "Consider using a variety of plot types for different aspects of the data")
	}
	if len(interactive) == 0 && len(plots) > 0 {
		suggestions = append(suggestions, "Consider adding interactive visualizations for better user engagement")
	}

	details := map[string]interface{}{
		"library_score":         libraryScore,
		"variety_score":         varietyScore,
		"appropriateness_score": appropriatenessScore,
		"interactivity_score":   interactivityScore,
		"libraries":             sortedSet(libraries),
		"plot_types":            sortedSet(chartTypes),
		"interactive_libraries": sortedSet(interactive),
		"plot_count":            len(plots),
	}

	return a.result(score, findings, suggestions, details)
}

// vizAliases maps every name a plotting library is bound to, both the stock
// aliases and whatever this snippet's imports rename them to.
func vizAliases(tree *pysrc.Module) map[string]string {
	aliases := map[string]string{}
	for lib, names := range plottingLibraries {
		aliases[lib] = lib
		for _, n := range names {
			aliases[n] = lib
		}
	}
	for _, imp := range tree.Imports() {
		root := importRoot(imp.Name)
		if _, ok := plottingLibraries[root]; !ok {
			continue
		}
		if imp.Text != "" {
			aliases[imp.Text] = root
		}
	}
	return aliases
}

func (a *VizTypesAnalyzer) collectLibraries(tree *pysrc.Module, aliases map[string]string) map[string]struct{} {
	libraries := map[string]struct{}{}
	for _, imp := range tree.Imports() {
		root := importRoot(imp.Name)
		if _, ok := plottingLibraries[root]; ok {
			libraries[root] = struct{}{}
		}
	}
	for _, call := range tree.Calls() {
		name := call.Name
		dot := strings.Index(name, ".")
		if dot < 0 {
			continue
		}
		if lib, ok := aliases[name[:dot]]; ok && isPlotMethod(name[strings.LastIndex(name, ".")+1:]) {
			libraries[lib] = struct{}{}
		}
	}
	return libraries
}

// collectPlots classifies every attribute call whose method name names a
// chart type. A method may land in more than one category.
func collectPlots(tree *pysrc.Module) []plotCall {
	types := make([]string, 0, len(plotTypes))
	for t := range plotTypes {
		types = append(types, t)
	}
	sort.Strings(types)

	var plots []plotCall
	for _, call := range tree.Calls() {
		dot := strings.LastIndex(call.Name, ".")
		if dot < 0 {
			continue
		}
		method := call.Name[dot+1:]
		base := call.Name[:strings.Index(call.Name, ".")]
		for _, t := range types {
			if containsName(plotTypes[t], method) {
				plots = append(plots, plotCall{chartType: t, method: method, base: base, line: call.Line, node: call})
			}
		}
	}
	return plots
}

func (a *VizTypesAnalyzer) collectInteractive(tree *pysrc.Module) map[string]struct{} {
	interactive := map[string]struct{}{}
	for _, imp := range tree.Imports() {
		root := importRoot(imp.Name)
		if _, ok := interactiveLibraries[root]; ok {
			interactive[root] = struct{}{}
		}
	}
	for _, call := range tree.Calls() {
		base := call.Name
		if dot := strings.Index(base, "."); dot >= 0 {
			base = base[:dot]
		}
		if _, ok := interactiveLibraries[base]; ok {
			interactive[base] = struct{}{}
		}
	}
	return interactive
}

// inferDataType guesses the data family a plot call is fed from the names
// bound to its x, y and data keyword arguments.
func inferDataType(call *pysrc.Node) string {
	for _, m := range dataKwarg.FindAllStringSubmatch(call.Text, -1) {
		value := strings.ToLower(m[2])
		switch {
		case strings.Contains(value, "time") || strings.Contains(value, "date"):
			return "temporal"
		case strings.Contains(value, "corr"):
			return "correlation"
		case strings.Contains(value, "cat"):
			return "categorical"
		case strings.Contains(value, "num"):
			return "numerical"
		}
	}
	return ""
}

func suitedTo(dataType, chartType string) bool {
	return containsName(appropriatePlots[dataType], chartType)
}

// positionalFirstArg reports whether a call's first argument is positional.
func positionalFirstArg(args string) bool {
	args = strings.TrimSpace(args)
	if args == "" {
		return false
	}
	if comma := strings.Index(args, ","); comma >= 0 {
		args = args[:comma]
	}
	return !strings.Contains(args, "=")
}

func isPlotMethod(method string) bool {
	for _, names := range plotTypes {
		if containsName(names, method) {
			return true
		}
	}
	return false
}

// signalScore rewards each distinct signal above the presentation baseline,
// capping at 100; no signals at all stay at the baseline.
func signalScore(count int, reward float64) float64 {
	if count == 0 {
		return vizBaseline
	}
	return bonus(vizBaseline, count, reward)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
