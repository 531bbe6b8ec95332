package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportShape(t *testing.T) {
	result := NewNotebookAnalysisResult("nb.ipynb")
	result.Metadata = map[string]interface{}{
		"total_cells":              3,
		"code_cell_count":          2,
		"documentation_cell_count": 1,
	}

	formatting, err := NewAnalyzerResult("formatting", CategoryQuality, 80, nil, nil, nil)
	require.NoError(t, err)
	vizTypes, err := NewAnalyzerResult("viz_types", CategoryPresentation, 60, nil, nil, nil)
	require.NoError(t, err)

	result.Add(formatting)
	result.Add(vizTypes)
	result.AddError("Error in quality/structure: analyzer panicked")

	report := result.Report()

	assert.Equal(t, "nb.ipynb", report.Metadata["notebook_path"])
	assert.Equal(t, 2, report.Metadata["code_cell_count"])
	assert.NotEmpty(t, report.AnalysisTimestamp)

	require.Contains(t, report.Results, CategoryQuality)
	require.Contains(t, report.Results, CategoryPresentation)
	assert.Same(t, formatting, report.Results[CategoryQuality]["formatting"])
	assert.Same(t, vizTypes, report.Results[CategoryPresentation]["viz_types"])

	assert.Equal(t, 2, report.Summary.TotalAnalyzers)
	assert.Equal(t, 80.0, report.Summary.CategoryScores[CategoryQuality])
	assert.Equal(t, 60.0, report.Summary.CategoryScores[CategoryPresentation])
	assert.Equal(t, result.OverallScore, report.Summary.OverallScore)
	assert.Len(t, report.Summary.Errors, 1)
}

func TestReportFixedKeys(t *testing.T) {
	result := NewNotebookAnalysisResult("")

	data, err := json.Marshal(result.Report())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, key := range []string{"metadata", "analysis_timestamp", "results", "summary"} {
		assert.Contains(t, doc, key)
	}
	assert.Len(t, doc, 4)

	var summary map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["summary"], &summary))
	for _, key := range []string{"total_analyzers", "category_scores", "overall_score", "errors"} {
		assert.Contains(t, summary, key)
	}
}

func TestReportEmptyRun(t *testing.T) {
	report := NewNotebookAnalysisResult("").Report()

	// Zero successful analyzers reports score 0, never an error.
	assert.Equal(t, 0.0, report.Summary.OverallScore)
	assert.Equal(t, 0, report.Summary.TotalAnalyzers)
	assert.Empty(t, report.Summary.Errors)
	assert.Empty(t, report.Results[CategoryQuality])
	assert.Empty(t, report.Results[CategoryPresentation])
	assert.NotContains(t, report.Metadata, "notebook_path")
}
