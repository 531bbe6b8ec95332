package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

// DocumentationAnalyzer scores docstring coverage and quality together with
// the density and substance of inline comments.
type DocumentationAnalyzer struct {
	analyzerBase
}

func NewDocumentationAnalyzer() *DocumentationAnalyzer {
	a := &DocumentationAnalyzer{}
	a.init("documentation", CategoryQuality, metricWeights{
		"docstrings":             0.30,
		"inline_comments":        0.25,
		"comment_quality":        0.25,
		"documentation_coverage": 0.20,
	})
	return a
}

// stopWords are ignored when comparing a comment against the code it
// annotates, so that shared articles and prepositions do not count as
// redundancy.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

func (a *DocumentationAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"docstrings":             map[string]interface{}{"score": 100.0, "coverage": 100.0, "quality": 100.0, "missing": 0},
			"inline_comments":        map[string]interface{}{"score": 100.0, "ratio": 0.0, "count": 0},
			"comment_quality":        map[string]interface{}{"score": 100.0, "issues": 0, "total_comments": 0},
			"documentation_coverage": map[string]interface{}{"score": 100.0, "coverage_ratio": 1.0},
		})
	}

	var findings []Finding
	var suggestions []string

	defs := append(tree.Functions(), tree.Classes()...)
	comments := tree.Comments()

	docScore, coverage, quality, missing, docFindings := a.scoreDocstrings(tree, defs)
	findings = append(findings, docFindings...)

	ratio, density, densityFindings := a.scoreCommentDensity(tree, comments)
	findings = append(findings, densityFindings...)

	qualityScore, issueCount, issueFindings := a.scoreCommentQuality(comments)
	findings = append(findings, issueFindings...)

	coverageRatio := 1.0
	if len(defs) > 0 {
		coverageRatio = float64(len(defs)-missing) / float64(len(defs))
	}
	coverageScore := coverageRatio * 100

	if missing > 0 {
		suggestions = append(suggestions, "Add docstrings to all functions and classes")
	}
	if quality < 100 {
		suggestions = append(suggestions, "Expand docstrings with argument and return descriptions")
	}
	if issueCount > 0 {
		suggestions = append(suggestions, "Rewrite comments to add information beyond the code itself")
	}
	if len(comments) > 0 && ratio < 0.05 {
		suggestions = append(suggestions, "Comment non-obvious logic inline")
	}

	score := Aggregate([]MetricScore{
		{Value: docScore, Weight: a.weights["docstrings"]},
		{Value: density, Weight: a.weights["inline_comments"]},
		{Value: qualityScore, Weight: a.weights["comment_quality"]},
		{Value: coverageScore, Weight: a.weights["documentation_coverage"]},
	})

	details := map[string]interface{}{
		"docstrings": map[string]interface{}{
			"score":    Round2(docScore),
			"coverage": Round2(coverage),
			"quality":  Round2(quality),
			"missing":  missing,
		},
		"inline_comments": map[string]interface{}{
			"score": Round2(density),
			"ratio": Round2(ratio),
			"count": len(comments),
		},
		"comment_quality": map[string]interface{}{
			"score":          Round2(qualityScore),
			"issues":         issueCount,
			"total_comments": len(comments),
		},
		"documentation_coverage": map[string]interface{}{
			"score":          Round2(coverageScore),
			"coverage_ratio": Round2(coverageRatio),
		},
	}

	return a.result(score, findings, suggestions, details)
}

// scoreDocstrings combines how many definitions carry a docstring with how
// substantial the present docstrings are. Both halves weigh equally.
func (a *DocumentationAnalyzer) scoreDocstrings(tree *pysrc.Module, defs []*pysrc.Node) (score, coverage, quality float64, missing int, findings []Finding) {
	coverage, quality = 100, 100
	if len(defs) == 0 {
		return 100, coverage, quality, 0, nil
	}

	var qualities []float64
	for _, def := range defs {
		doc := tree.Docstring(def)
		if doc == nil {
			missing++
			findings = append(findings, Finding{
				Message: fmt.Sprintf("%s '%s' has no docstring", defKind(def), def.Name),
				Line:    def.Line,
			})
			continue
		}
		q, qualityFindings := a.docstringQuality(def, doc)
		qualities = append(qualities, q)
		findings = append(findings, qualityFindings...)
	}

	coverage = float64(len(defs)-missing) / float64(len(defs)) * 100
	if len(qualities) > 0 {
		quality = 0
		for _, q := range qualities {
			quality += q
		}
		quality /= float64(len(qualities))
	}
	return (coverage + quality) / 2, coverage, quality, missing, findings
}

// docstringQuality grades a single docstring. Functions are expected to
// describe their arguments and return value, classes to span more than a
// single line.
func (a *DocumentationAnalyzer) docstringQuality(def *pysrc.Node, doc *pysrc.Node) (float64, []Finding) {
	var findings []Finding
	score := 100.0
	text := doc.Text

	if len(strings.Fields(text)) < 3 {
		score -= 30
		findings = append(findings, Finding{
			Message: fmt.Sprintf("Docstring for '%s' is shorter than three words", def.Name),
			Line:    doc.Line,
		})
	}
	if def.Kind == pysrc.KindFunction {
		if !strings.Contains(text, "Args:") {
			score -= 20
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Docstring for '%s' does not describe its arguments", def.Name),
				Line:    doc.Line,
			})
		}
		if !strings.Contains(text, "Returns:") {
			score -= 20
			findings = append(findings, Finding{
				Message: fmt.Sprintf("Docstring for '%s' does not describe its return value", def.Name),
				Line:    doc.Line,
			})
		}
	}
	if def.Kind == pysrc.KindClass && len(strings.Split(text, "\n")) < 2 {
		score -= 20
		findings = append(findings, Finding{
			Message: fmt.Sprintf("Class docstring for '%s' fits on a single line", def.Name),
			Line:    doc.Line,
		})
	}
	return Clamp(score, 0, 100), findings
}

// scoreCommentDensity maps the comment-to-line ratio onto a band: sparse
// snippets score proportionally, 5%-30% is ideal, anything denser decays.
func (a *DocumentationAnalyzer) scoreCommentDensity(tree *pysrc.Module, comments []*pysrc.Node) (ratio, score float64, findings []Finding) {
	total := len(tree.Lines)
	if total == 0 {
		return 0, 0, nil
	}
	ratio = float64(len(comments)) / float64(total)

	switch {
	case ratio < 0.05:
		score = ratio * 10 * 100
		findings = append(findings, Finding{Message: "Few comments relative to snippet size"})
	case ratio <= 0.3:
		score = 100
	default:
		score = Clamp((1-(ratio-0.3)*2)*100, 0, 100)
		findings = append(findings, Finding{Message: "Comment density is unusually high"})
	}
	return ratio, score, findings
}

// scoreCommentQuality counts substance issues per comment: too few words,
// restating the code on the same line, or not opening with a capital.
func (a *DocumentationAnalyzer) scoreCommentQuality(comments []*pysrc.Node) (float64, int, []Finding) {
	if len(comments) == 0 {
		return 100, 0, nil
	}

	var findings []Finding
	issues := 0
	for _, c := range comments {
		text := c.Text
		if text == "" {
			continue
		}
		if len(strings.Fields(text)) < 3 {
			issues++
			findings = append(findings, Finding{Message: "Comment is too brief", Line: c.Line})
		}
		if c.Code != "" && redundancy(c.Code, text) > 0.8 {
			issues++
			findings = append(findings, Finding{Message: "Comment repeats the code it annotates", Line: c.Line})
		}
		if r, _ := utf8.DecodeRuneInString(text); !unicode.IsUpper(r) {
			issues++
			findings = append(findings, Finding{Message: "Comment does not start with a capital letter", Line: c.Line})
		}
	}

	score := Clamp(100-float64(issues)/float64(len(comments))*50, 0, 100)
	return score, issues, findings
}

// redundancy is the share of a comment's meaningful tokens that also appear
// in the annotated code.
func redundancy(code, comment string) float64 {
	codeTokens := tokenSet(code)
	commentTokens := tokenSet(comment)
	if len(commentTokens) == 0 {
		return 0
	}
	overlap := 0
	for tok := range commentTokens {
		if _, ok := codeTokens[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(commentTokens))
}

// tokenSet lowercases and splits text into identifier-like tokens, dropping
// stop words.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var tok strings.Builder
	flush := func() {
		if tok.Len() == 0 {
			return
		}
		word := strings.ToLower(tok.String())
		tok.Reset()
		if _, skip := stopWords[word]; !skip {
			set[word] = struct{}{}
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			tok.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return set
}

func defKind(n *pysrc.Node) string {
	if n.Kind == pysrc.KindClass {
		return "Class"
	}
	return "Function"
}
