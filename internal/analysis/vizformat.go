package analysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

// styleParameters groups the formatting knobs a plot call can set, matched
// against both method names and keyword argument names.
var styleParameters = map[string][]string{
	"figure":        {"figsize", "dpi", "facecolor", "edgecolor", "layout"},
	"axes":          {"title", "xlabel", "ylabel", "xlim", "ylim", "grid"},
	"text":          {"fontsize", "fontweight", "fontstyle", "color"},
	"legend":        {"loc", "bbox_to_anchor", "frameon", "title"},
	"color":         {"cmap", "color", "palette"},
	"accessibility": {"alt_text", "description", "colorblind_friendly"},
}

// aestheticElements maps each chart element class to the calls that add it.
var aestheticElements = map[string][]string{
	"title":  {"set_title", "suptitle", "title"},
	"labels": {"set_xlabel", "set_ylabel", "xlabel", "ylabel"},
	"legend": {"legend"},
	"grid":   {"grid"},
	"theme":  {"style", "set_style", "set_theme"},
}

var styleSettingMethods = []string{"set_style", "style", "set_context", "set_palette"}

// minimum readable values for text sizing parameters, checked in a fixed
// order so repeated runs emit identical suggestions.
var recommendedSizes = []struct {
	param   string
	minimum float64
	pattern *regexp.Regexp
}{
	{"fontsize", 12, regexp.MustCompile(`\bfontsize\s*=\s*(\d+(\.\d+)?)`)},
	{"title_fontsize", 14, regexp.MustCompile(`\btitle_fontsize\s*=\s*(\d+(\.\d+)?)`)},
	{"dpi", 100, regexp.MustCompile(`\bdpi\s*=\s*(\d+(\.\d+)?)`)},
}

var figsizePair = regexp.MustCompile(`\bfigsize\s*=\s*[\(\[]\s*\d+(\.\d+)?\s*,\s*\d+(\.\d+)?\s*[\)\]]`)
var figsizeAny = regexp.MustCompile(`\bfigsize\s*=`)

// VizFormattingAnalyzer checks how plots are dressed: sizing and styling
// parameters, titles and labels, and whether one consistent theme is used.
type VizFormattingAnalyzer struct {
	analyzerBase
}

func NewVizFormattingAnalyzer() *VizFormattingAnalyzer {
	a := &VizFormattingAnalyzer{}
	a.init("viz_formatting", CategoryPresentation, metricWeights{
		"basic_formatting": 0.30,
		"readability":      0.30,
		"aesthetics":       0.20,
		"consistency":      0.20,
	})
	return a
}

func (a *VizFormattingAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(vizBaseline, []Finding{*parseFailure}, nil, map[string]interface{}{
			"basic_score":       float64(vizBaseline),
			"readability_score": float64(vizBaseline),
			"aesthetics_score":  float64(vizBaseline),
			"consistency_score": float64(vizBaseline),
			"format_categories": []string{},
			"elements":          []string{},
			"style_settings":    0,
		})
	}

	formatCategories := map[string]int{}
	elements := map[string]int{}
	styleSettings := map[string]int{}
	fontIssues := 0
	var findings []Finding
	var suggestions []string

	for _, call := range tree.Calls() {
		method := call.Name
		if dot := strings.LastIndex(method, "."); dot >= 0 {
			method = method[dot+1:]
		}

		for category, params := range styleParameters {
			if callTouches(call, method, params) {
				formatCategories[category]++
			}
		}
		for element, methods := range aestheticElements {
			if containsName(methods, method) {
				elements[element]++
			}
		}
		if containsName(styleSettingMethods, method) {
			styleSettings[method]++
		}

		for _, rec := range recommendedSizes {
			m := rec.pattern.FindStringSubmatch(call.Text)
			if m == nil {
				continue
			}
			value, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if value < rec.minimum {
				fontIssues++
				suggestions = append(suggestions, fmt.Sprintf("Line %d: Consider increasing %s to at least %g", call.Line, rec.param, rec.minimum))
			}
		}
		if figsizeAny.MatchString(call.Text) && !figsizePair.MatchString(call.Text) {
			findings = append(findings, Finding{Message: "Invalid figsize format", Line: call.Line})
		}
	}

	basicScore := signalScore(len(formatCategories), 10)
	readabilityScore := float64(vizBaseline)
	if formatCategories["text"] > 0 {
		readabilityScore = penalize(fontIssues, 15)
	}
	aestheticsScore := signalScore(len(elements), 10)
	consistencyScore := float64(vizBaseline)
	if len(styleSettings) > 0 {
		consistencyScore = penalize(len(styleSettings)-1, 20)
	}

	score := Aggregate([]MetricScore{
		{Value: basicScore, Weight: a.weights["basic_formatting"]},
		{Value: readabilityScore, Weight: a.weights["readability"]},
		{Value: aestheticsScore, Weight: a.weights["aesthetics"]},
		{Value: consistencyScore, Weight: a.weights["consistency"]},
	})

	if len(formatCategories) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d formatting calls", countOf(formatCategories))})
	}
	if len(styleSettings) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d style settings", len(styleSettings))})
	}
	if len(elements) > 0 {
		findings = append(findings, Finding{Message: fmt.Sprintf("Found %d aesthetic elements", len(elements))})
	}

	if len(formatCategories) == 0 {
		suggestions = append(suggestions, "Consider adding basic plot formatting (figure size, labels, etc.)")
	}
	if elements["title"] == 0 {
		suggestions = append(suggestions, "Add descriptive titles to plots")
	}
	if elements["labels"] == 0 {
		suggestions = append(suggestions, "Add axis labels to improve plot readability")
	}
	if elements["legend"] == 0 {
		suggestions = append(suggestions, "Consider adding legends where appropriate")
	}
	if len(styleSettings) == 0 {
		suggestions = append(suggestions, "Consider setting a consistent visualization style")
	}

	details := map[string]interface{}{
		"basic_score":       basicScore,
		"readability_score": readabilityScore,
		"aesthetics_score":  aestheticsScore,
		"consistency_score": consistencyScore,
		"format_categories": sortedKeys(formatCategories),
		"elements":          sortedKeys(elements),
		"style_settings":    len(styleSettings),
	}

	return a.result(score, findings, suggestions, details)
}

// callTouches reports whether a call sets any parameter of a style category,
// either by method name or by keyword argument.
func callTouches(call *pysrc.Node, method string, params []string) bool {
	if containsName(params, method) {
		return true
	}
	for _, kw := range call.Keywords {
		if containsName(params, kw) {
			return true
		}
	}
	return false
}

