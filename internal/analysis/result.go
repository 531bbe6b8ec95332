package analysis

import (
	"fmt"
	"time"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

// Category partitions analyzers into the two reported score groups.
type Category string

const (
	CategoryQuality      Category = "quality"
	CategoryPresentation Category = "presentation"
)

// Valid reports whether c is one of the two known categories.
func (c Category) Valid() bool {
	return c == CategoryQuality || c == CategoryPresentation
}

// Categories returns the known categories in report order.
func Categories() []Category {
	return []Category{CategoryQuality, CategoryPresentation}
}

// Finding is a single located observation an analyzer made about the
// snippet. Line 0 means the finding applies to the snippet as a whole.
type Finding struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// MetricScore is one sub-metric outcome: a value in [0,100] and the fixed
// weight it carries inside its analyzer.
type MetricScore struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// AnalyzerResult is the validated outcome of one analyzer invocation.
// It carries no timestamp: analyzing the same snippet twice must yield
// byte-identical results, and the run envelope already records when.
type AnalyzerResult struct {
	AnalyzerName string                 `json:"analyzer_name"`
	Category     Category               `json:"category"`
	Score        float64                `json:"score"`
	Findings     []Finding              `json:"findings"`
	Suggestions  []string               `json:"suggestions,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// NewAnalyzerResult builds an AnalyzerResult and enforces the result
// contract. Violations mean the analyzer itself is broken, so they surface
// as errors rather than being clamped away.
func NewAnalyzerResult(name string, category Category, score float64, findings []Finding, suggestions []string, details map[string]interface{}) (*AnalyzerResult, error) {
	if name == "" {
		return nil, apperrors.NewResultValidationError(name, "analyzer name must not be empty")
	}
	if !category.Valid() {
		return nil, apperrors.NewResultValidationError(name, fmt.Sprintf("unknown category %q", category))
	}
	if score < 0 || score > 100 {
		return nil, apperrors.NewResultValidationError(name, fmt.Sprintf("score %.2f outside [0,100]", score))
	}

	if findings == nil {
		findings = []Finding{}
	}

	return &AnalyzerResult{
		AnalyzerName: name,
		Category:     category,
		Score:        score,
		Findings:     findings,
		Suggestions:  suggestions,
		Details:      details,
	}, nil
}

// NotebookAnalysisResult collects every analyzer outcome for one notebook
// run together with the errors of the analyzers that failed.
type NotebookAnalysisResult struct {
	NotebookPath    string                         `json:"notebook_path,omitempty"`
	Metadata        map[string]interface{}         `json:"metadata,omitempty"`
	AnalyzerResults map[Category][]*AnalyzerResult `json:"analyzer_results"`
	Errors          []string                       `json:"errors"`
	OverallScore    float64                        `json:"overall_score"`
	Timestamp       time.Time                      `json:"timestamp"`
	Duration        time.Duration                  `json:"-"`

	analyzerWeights map[string]float64
	categoryWeights map[Category]float64
}

// NewNotebookAnalysisResult returns an empty result shell for a run using
// the default weight tables.
func NewNotebookAnalysisResult(path string) *NotebookAnalysisResult {
	return newNotebookAnalysisResult(path, DefaultConfig())
}

func newNotebookAnalysisResult(path string, cfg *Config) *NotebookAnalysisResult {
	weights := make(map[string]float64, len(cfg.QualityWeights)+len(cfg.PresentationWeights))
	for name, w := range cfg.QualityWeights {
		weights[name] = w
	}
	for name, w := range cfg.PresentationWeights {
		weights[name] = w
	}
	return &NotebookAnalysisResult{
		NotebookPath:    path,
		AnalyzerResults: map[Category][]*AnalyzerResult{},
		Errors:          []string{},
		Timestamp:       time.Now().UTC(),
		analyzerWeights: weights,
		categoryWeights: cfg.CategoryWeights,
	}
}

// Add records one analyzer result and rederives the overall score. Adding
// results in any order produces the same score.
func (r *NotebookAnalysisResult) Add(res *AnalyzerResult) {
	r.AnalyzerResults[res.Category] = append(r.AnalyzerResults[res.Category], res)
	r.OverallScore = r.computeOverall()
}

// AddError records a failed analyzer without touching the scores.
func (r *NotebookAnalysisResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// CategoryScore aggregates the category's analyzer scores under the
// per-analyzer weight table, normalized over the analyzers actually present
// so a failed sibling shifts weight instead of contributing a zero. A
// category with no successful analyzers scores 0.
func (r *NotebookAnalysisResult) CategoryScore(c Category) float64 {
	results := r.AnalyzerResults[c]
	pairs := make([]MetricScore, 0, len(results))
	for _, res := range results {
		w, ok := r.analyzerWeights[res.AnalyzerName]
		if !ok {
			w = 1
		}
		pairs = append(pairs, MetricScore{Value: res.Score, Weight: w})
	}
	return Aggregate(pairs)
}

// SuccessCount returns the number of analyzer results across all categories.
func (r *NotebookAnalysisResult) SuccessCount() int {
	n := 0
	for _, results := range r.AnalyzerResults {
		n += len(results)
	}
	return n
}

func (r *NotebookAnalysisResult) computeOverall() float64 {
	pairs := make([]MetricScore, 0, 2)
	for _, c := range Categories() {
		if len(r.AnalyzerResults[c]) == 0 {
			continue
		}
		pairs = append(pairs, MetricScore{Value: r.CategoryScore(c), Weight: r.categoryWeights[c]})
	}
	return Aggregate(pairs)
}
