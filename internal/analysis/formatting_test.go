package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormattingAnalyzerCleanSnippet(t *testing.T) {
	a := NewFormattingAnalyzer()

	snippet := strings.Join([]string{
		"import pandas as pd",
		"",
		"def load(path):",
		"    return pd.read_csv(path)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	assert.Equal(t, "formatting", res.AnalyzerName)
	assert.Equal(t, CategoryQuality, res.Category)
	assert.Equal(t, 100.0, res.Score)
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Suggestions)
	assert.Equal(t, 0, res.Details["violation_count"])
}

func TestFormattingAnalyzerLongLine(t *testing.T) {
	a := NewFormattingAnalyzer()

	// One line of 90 characters; every other check passes.
	long := "x = " + strings.Repeat("1", 86)
	require.Len(t, long, 90)

	res, err := a.Analyze(long)
	require.NoError(t, err)

	// One violation at 5 points against the 0.30 line length weight.
	assert.Equal(t, 98.5, res.Score)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, 1, res.Findings[0].Line)
	assert.Contains(t, res.Findings[0].Message, "Line too long (90 > 79 characters)")
	assert.Equal(t, 95.0, res.Details["line_length_score"])
}

func TestFormattingAnalyzerChecks(t *testing.T) {
	a := NewFormattingAnalyzer()

	tests := []struct {
		name        string
		snippet     string
		wantFinding string
		detailKey   string
	}{
		{
			name:        "odd indentation",
			snippet:     "def f():\n   return 1",
			wantFinding: "Indentation is not a multiple of 4",
			detailKey:   "indentation_score",
		},
		{
			name:        "class naming",
			snippet:     "class my_model:\n    pass",
			wantFinding: "Class name 'my_model' doesn't follow conventions",
			detailKey:   "naming_score",
		},
		{
			name:        "function naming",
			snippet:     "def LoadData():\n    pass",
			wantFinding: "Function name 'LoadData' doesn't follow conventions",
			detailKey:   "naming_score",
		},
		{
			name:        "variable naming",
			snippet:     "myValue = 3",
			wantFinding: "Variable name 'myValue' doesn't follow conventions",
			detailKey:   "naming_score",
		},
		{
			name:        "scattered imports",
			snippet:     "import os\nx = 1\nimport sys",
			wantFinding: "Imports are not grouped together",
			detailKey:   "import_organization_score",
		},
		{
			name:        "trailing whitespace",
			snippet:     "x = 1 \ny = 2",
			wantFinding: "Trailing whitespace",
			detailKey:   "whitespace_score",
		},
		{
			name:        "tab character",
			snippet:     "if x:\n\ty = 2",
			wantFinding: "Tab character used for spacing",
			detailKey:   "whitespace_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Analyze(tt.snippet)
			require.NoError(t, err)

			assert.Less(t, res.Score, 100.0)
			assert.GreaterOrEqual(t, res.Score, 0.0)

			found := false
			for _, f := range res.Findings {
				if strings.Contains(f.Message, tt.wantFinding) {
					found = true
				}
			}
			assert.True(t, found, "expected finding %q in %v", tt.wantFinding, res.Findings)
			assert.Less(t, res.Details[tt.detailKey], 100.0)
			assert.NotEmpty(t, res.Suggestions)
		})
	}
}

func TestFormattingAnalyzerConstantNames(t *testing.T) {
	a := NewFormattingAnalyzer()

	res, err := a.Analyze("MAX_RETRIES = 5\nTIMEOUT_SECONDS = 30")
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Score)
}

func TestFormattingAnalyzerGuards(t *testing.T) {
	a := NewFormattingAnalyzer()

	_, err := a.Analyze("   ")
	assert.Error(t, err)

	a.Deactivate()
	_, err = a.Analyze("x = 1")
	assert.Error(t, err)

	a.Activate()
	_, err = a.Analyze("x = 1")
	assert.NoError(t, err)
}
