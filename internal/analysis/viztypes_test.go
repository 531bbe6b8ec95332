package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVizTypesBaselineWithoutPlots(t *testing.T) {
	a := NewVizTypesAnalyzer()

	// No plotting at all sits at the presentation baseline across the board.
	res, err := a.Analyze("x = 1\ny = x + 2")
	require.NoError(t, err)

	assert.Equal(t, 60.0, res.Score)
	assert.Equal(t, 60.0, res.Details["library_score"])
	assert.Equal(t, 60.0, res.Details["variety_score"])
	assert.Equal(t, 60.0, res.Details["appropriateness_score"])
	assert.Equal(t, 60.0, res.Details["interactivity_score"])
	assert.Equal(t, 0, res.Details["plot_count"])
	assert.Contains(t, res.Suggestions, "Consider using visualization libraries for data presentation")
}

func TestVizTypesLibraryAndVariety(t *testing.T) {
	a := NewVizTypesAnalyzer()

	snippet := strings.Join([]string{
		"import matplotlib.pyplot as plt",
		"import seaborn as sns",
		"plt.scatter(x=num_values, y=other_values)",
		"sns.barplot(x=cat_labels, y=counts)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	// Two libraries at 25 each over the 60 baseline, capped at 100.
	assert.Equal(t, 100.0, res.Details["library_score"])
	// Two chart types at 20 each.
	assert.Equal(t, 100.0, res.Details["variety_score"])
	assert.Equal(t, []string{"matplotlib", "seaborn"}, res.Details["libraries"])
	assert.Equal(t, []string{"bar", "scatter"}, res.Details["plot_types"])
	assert.Equal(t, 2, res.Details["plot_count"])
}

func TestVizTypesAppropriateness(t *testing.T) {
	a := NewVizTypesAnalyzer()

	tests := []struct {
		name      string
		snippet   string
		wantScore float64
		wantIssue string
	}{
		{
			name:      "scatter suits correlation data",
			snippet:   "plt.scatter(x=corr_matrix, y=corr_values)",
			wantScore: 100,
		},
		{
			name:      "pie chart on temporal data",
			snippet:   "plt.pie(x=date_totals)",
			wantScore: 80, // poor fit plus positional-free call checks
			wantIssue: "A pie chart is a poor fit for temporal data",
		},
		{
			name:      "line plot fits temporal data",
			snippet:   "plt.plot(x=timestamps, y=values)",
			wantScore: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Analyze(tt.snippet)
			require.NoError(t, err)

			assert.Equal(t, tt.wantScore, res.Details["appropriateness_score"])
			if tt.wantIssue != "" {
				found := false
				for _, f := range res.Findings {
					if f.Message == tt.wantIssue {
						found = true
					}
				}
				assert.True(t, found, "expected %q in %v", tt.wantIssue, res.Findings)
			}
		})
	}
}

func TestVizTypesScatterWithoutAxes(t *testing.T) {
	a := NewVizTypesAnalyzer()

	res, err := a.Analyze("plt.scatter(values)")
	require.NoError(t, err)

	found := false
	for _, s := range res.Suggestions {
		if strings.Contains(s, "Scatter plots should specify x and y variables") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Suggestions)
	assert.Equal(t, 90.0, res.Details["appropriateness_score"])
}

func TestVizTypesInteractivity(t *testing.T) {
	a := NewVizTypesAnalyzer()

	snippet := strings.Join([]string{
		"import plotly.express as px",
		"px.scatter(x=num_a, y=num_b)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.Details["interactivity_score"])
	assert.Equal(t, []string{"plotly"}, res.Details["interactive_libraries"])
}

func TestVizTypesSingleChartTypeSuggestion(t *testing.T) {
	a := NewVizTypesAnalyzer()

	res, err := a.Analyze("plt.hist(x=num_ages)")
	require.NoError(t, err)

	assert.Contains(t, res.Suggestions, "Consider using a variety of plot types for different aspects of the data")
	assert.Contains(t, res.Suggestions, "Consider adding interactive visualizations for better user engagement")
}
