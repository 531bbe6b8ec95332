package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVizFormattingBaselineWithoutPlots(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	res, err := a.Analyze("x = 1\ny = x * 2")
	require.NoError(t, err)

	assert.Equal(t, 60.0, res.Score)
	assert.Equal(t, 60.0, res.Details["basic_score"])
	assert.Equal(t, 60.0, res.Details["readability_score"])
	assert.Equal(t, 60.0, res.Details["aesthetics_score"])
	assert.Equal(t, 60.0, res.Details["consistency_score"])
	assert.Contains(t, res.Suggestions, "Consider adding basic plot formatting (figure size, labels, etc.)")
	assert.Contains(t, res.Suggestions, "Consider setting a consistent visualization style")
}

func TestVizFormattingWellDressedPlot(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	snippet := strings.Join([]string{
		"plt.figure(figsize=(10, 6), dpi=120)",
		"ax.set_title('Results', fontsize=14)",
		"plt.xlabel('Time')",
		"plt.legend(loc='upper right')",
		"sns.set_style('whitegrid')",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	// Four styling categories and four aesthetic element classes at +10 each
	// over the 60 baseline, one style family, no undersized text.
	assert.Equal(t, 100.0, res.Details["basic_score"])
	assert.Equal(t, 100.0, res.Details["readability_score"])
	assert.Equal(t, 100.0, res.Details["aesthetics_score"])
	assert.Equal(t, 100.0, res.Details["consistency_score"])
	assert.Equal(t, 100.0, res.Score)
}

func TestVizFormattingUndersizedText(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	res, err := a.Analyze("plt.title('tiny', fontsize=8)")
	require.NoError(t, err)

	// Text styling is present, so readability drops 15 per undersized value.
	assert.Equal(t, 85.0, res.Details["readability_score"])
	assert.Contains(t, res.Suggestions, "Line 1: Consider increasing fontsize to at least 12")
}

func TestVizFormattingLowDPI(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	res, err := a.Analyze("plt.figure(dpi=72, fontsize=14)")
	require.NoError(t, err)

	assert.Equal(t, 85.0, res.Details["readability_score"])
	assert.Contains(t, res.Suggestions, "Line 1: Consider increasing dpi to at least 100")
}

func TestVizFormattingMalformedFigsize(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	res, err := a.Analyze("plt.figure(figsize='big')")
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if f.Message == "Invalid figsize format" {
			found = true
			assert.Equal(t, 1, f.Line)
		}
	}
	assert.True(t, found, "expected a malformed-figsize finding, got %v", res.Findings)
}

func TestVizFormattingMixedStyleFamilies(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	snippet := strings.Join([]string{
		"sns.set_style('whitegrid')",
		"sns.set_palette('muted')",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	// Two style-setting families cost 20 for every one past the first.
	assert.Equal(t, 80.0, res.Details["consistency_score"])
}

func TestVizFormattingMissingAesthetics(t *testing.T) {
	a := NewVizFormattingAnalyzer()

	res, err := a.Analyze("plt.figure(figsize=(8, 4))")
	require.NoError(t, err)

	assert.Contains(t, res.Suggestions, "Add descriptive titles to plots")
	assert.Contains(t, res.Suggestions, "Add axis labels to improve plot readability")
	assert.Contains(t, res.Suggestions, "Consider adding legends where appropriate")
}
