package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

const maxJoinsPerSnippet = 3

// joinMethods are the pandas calls treated as dataset join operations.
var joinMethods = map[string]struct{}{
	"merge": {}, "join": {}, "concat": {}, "append": {},
}

// joinTypeWeights scale the score by how predictable each join type is;
// unknown types get the default factor.
var joinTypeWeights = map[string]float64{
	"inner": 1.0,
	"outer": 0.8,
	"left":  0.9,
	"right": 0.9,
	"cross": 0.6,
}

const defaultJoinWeight = 0.7

var howPattern = regexp.MustCompile(`how\s*=\s*["']([a-zA-Z]+)["']`)
var multiKeyPattern = regexp.MustCompile(`\bon\s*=\s*\[[^\]]*,`)

// DataMergeAnalyzer scores pandas join usage: explicit keys, sensible join
// types and restraint in how many merges a single snippet chains together.
type DataMergeAnalyzer struct {
	analyzerBase
}

func NewDataMergeAnalyzer() *DataMergeAnalyzer {
	a := &DataMergeAnalyzer{}
	a.init("data_merge", CategoryQuality, metricWeights{
		"join_quality": 1.0,
	})
	return a
}

type joinOp struct {
	method string
	how    string
	line   int
	node   *pysrc.Node
}

func (a *DataMergeAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	if err := a.guard(snippet); err != nil {
		return nil, err
	}
	tree, parseFailure := parseSnippet(snippet)
	if parseFailure != nil {
		return a.result(100, []Finding{*parseFailure}, nil, map[string]interface{}{
			"join_count":   0,
			"join_types":   map[string]int{},
			"join_methods": map[string]int{},
		})
	}

	joins := collectJoins(tree)
	joinTypes := map[string]int{}
	joinMethodCounts := map[string]int{}
	for _, op := range joins {
		joinMethodCounts[op.method]++
		if op.method == "merge" {
			joinTypes[op.how]++
		}
	}

	var findings []Finding
	var suggestions []string
	for _, op := range joins {
		switch op.method {
		case "merge":
			if op.how == "cross" {
				findings = append(findings, Finding{
					Message: "Cross join detected - consider using a more specific join type",
					Line:    op.line,
				})
			}
			if !hasJoinKeys(op.node) {
				findings = append(findings, Finding{
					Message: "Join columns not explicitly specified",
					Line:    op.line,
				})
			}
			if multiKeyPattern.MatchString(op.node.Text) && !hasKeywordArg(op.node, "sort") {
				suggestions = append(suggestions, fmt.Sprintf("Line %d: Consider sorting data before joining on multiple keys", op.line))
			}
		case "concat":
			if !hasKeywordArg(op.node, "axis") {
				suggestions = append(suggestions, fmt.Sprintf("Line %d: Consider specifying 'axis' parameter in concat operation", op.line))
			}
		case "append":
			suggestions = append(suggestions, fmt.Sprintf("Line %d: 'append' is deprecated, consider using 'concat' instead", op.line))
		}
	}

	score := a.score(joins, len(findings))

	if len(joins) > maxJoinsPerSnippet {
		suggestions = append(suggestions, fmt.Sprintf("Consider splitting joins across multiple cells (recommended max: %d)", maxJoinsPerSnippet))
	}
	if joinMethodCounts["append"] > 0 {
		suggestions = append(suggestions, "Replace 'append' operations with 'concat' for better performance")
	}
	if len(joinTypes) == 1 && joinTypes["inner"] > 0 {
		suggestions = append(suggestions, "Consider if other join types (left, right, outer) might be more appropriate")
	}

	details := map[string]interface{}{
		"join_count":   len(joins),
		"join_types":   joinTypes,
		"join_methods": joinMethodCounts,
	}

	return a.result(score, findings, suggestions, details)
}

// score starts at 100, charges 10 per issue and 5 per join beyond the chain
// ceiling, then scales by the type weight of every merge in the snippet.
func (a *DataMergeAnalyzer) score(joins []joinOp, issues int) float64 {
	if len(joins) == 0 {
		return 100
	}

	score := 100.0
	score -= float64(issues) * 10
	if len(joins) > maxJoinsPerSnippet {
		score -= float64(len(joins)-maxJoinsPerSnippet) * 5
	}
	for _, op := range joins {
		if op.method != "merge" {
			continue
		}
		weight, ok := joinTypeWeights[op.how]
		if !ok {
			weight = defaultJoinWeight
		}
		score *= weight
	}

	return Clamp(Round2(score), 0, 100)
}

// collectJoins finds attribute calls whose final segment is a join method.
func collectJoins(tree *pysrc.Module) []joinOp {
	var joins []joinOp
	for _, call := range tree.Calls() {
		name := call.Name
		dot := strings.LastIndex(name, ".")
		if dot < 0 {
			continue
		}
		method := name[dot+1:]
		if _, ok := joinMethods[method]; !ok {
			continue
		}
		joins = append(joins, joinOp{
			method: method,
			how:    joinHow(call),
			line:   call.Line,
			node:   call,
		})
	}
	return joins
}

// joinHow reads the how= argument of a merge call; absent means inner,
// present but non-literal means unknown.
func joinHow(call *pysrc.Node) string {
	if !hasKeywordArg(call, "how") {
		return "inner"
	}
	if m := howPattern.FindStringSubmatch(call.Text); m != nil {
		return m[1]
	}
	return "unknown"
}

func hasJoinKeys(call *pysrc.Node) bool {
	for _, key := range []string{"on", "left_on", "right_on"} {
		if hasKeywordArg(call, key) {
			return true
		}
	}
	return false
}

func hasKeywordArg(call *pysrc.Node, name string) bool {
	for _, kw := range call.Keywords {
		if kw == name {
			return true
		}
	}
	return false
}
