package analysis

import "time"

// Report is the serialized document handed to report consumers: the CLI
// renderer, the HTTP API and the run-history store. Field order is fixed by
// the struct so the same run always marshals to the same document.
type Report struct {
	Metadata          map[string]interface{}                  `json:"metadata"`
	AnalysisTimestamp string                                  `json:"analysis_timestamp"`
	Results           map[Category]map[string]*AnalyzerResult `json:"results"`
	Summary           ReportSummary                           `json:"summary"`
}

// ReportSummary is the roll-up block of a report.
type ReportSummary struct {
	TotalAnalyzers int                  `json:"total_analyzers"`
	CategoryScores map[Category]float64 `json:"category_scores"`
	OverallScore   float64              `json:"overall_score"`
	Errors         []string             `json:"errors"`
}

// Report projects the run outcome into the fixed report document shape.
func (r *NotebookAnalysisResult) Report() *Report {
	metadata := make(map[string]interface{}, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	if r.NotebookPath != "" {
		metadata["notebook_path"] = r.NotebookPath
	}

	results := make(map[Category]map[string]*AnalyzerResult, len(Categories()))
	categoryScores := make(map[Category]float64, len(Categories()))
	for _, c := range Categories() {
		byName := make(map[string]*AnalyzerResult, len(r.AnalyzerResults[c]))
		for _, res := range r.AnalyzerResults[c] {
			byName[res.AnalyzerName] = res
		}
		results[c] = byName
		categoryScores[c] = r.CategoryScore(c)
	}

	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}

	return &Report{
		Metadata:          metadata,
		AnalysisTimestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Results:           results,
		Summary: ReportSummary{
			TotalAnalyzers: r.SuccessCount(),
			CategoryScores: categoryScores,
			OverallScore:   r.OverallScore,
			Errors:         errs,
		},
	}
}
