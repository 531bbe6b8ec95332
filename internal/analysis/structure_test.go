package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureAnalyzerCleanSnippet(t *testing.T) {
	a := NewStructureAnalyzer()

	snippet := strings.Join([]string{
		"import os",
		"import sys",
		"",
		"def resolve(path):",
		"    return os.path.abspath(path)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Score)
	assert.Empty(t, res.Findings)

	stats := res.Details["stats"].(map[string]interface{})
	assert.Equal(t, 0, stats["class_count"])
	assert.Equal(t, 1, stats["function_count"])
}

func TestStructureAnalyzerClassShape(t *testing.T) {
	a := NewStructureAnalyzer()

	tests := []struct {
		name        string
		snippet     string
		wantFinding string
	}{
		{
			name: "too many bases",
			snippet: strings.Join([]string{
				"class Combined(A, B, C, D):",
				"    def one(self):",
				"        return 1",
				"    def two(self):",
				"        return 2",
			}, "\n"),
			wantFinding: "Class 'Combined' has too many base classes",
		},
		{
			name: "too few methods",
			snippet: strings.Join([]string{
				"class Holder:",
				"    def get(self):",
				"        return self.value",
			}, "\n"),
			wantFinding: "Class 'Holder' might be too small (1 methods)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Analyze(tt.snippet)
			require.NoError(t, err)

			found := false
			for _, f := range res.Findings {
				if strings.Contains(f.Message, tt.wantFinding) {
					found = true
				}
			}
			assert.True(t, found, "expected %q in %v", tt.wantFinding, res.Findings)
			assert.Less(t, res.Details["class_structure_score"], 100.0)
		})
	}
}

func TestStructureAnalyzerFunctionSignatures(t *testing.T) {
	a := NewStructureAnalyzer()

	snippet := "def configure(a, b, c, d, e, f):\n    return a"

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "Function 'configure' has too many parameters (6)") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
	assert.Contains(t, res.Suggestions, "Limit function parameters to 5 or fewer")
}

func TestStructureAnalyzerMissingReturn(t *testing.T) {
	a := NewStructureAnalyzer()

	res, err := a.Analyze("def log_value(x):\n    print(x)")
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "Function 'log_value' lacks explicit return statement") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
}

func TestStructureAnalyzerCyclomaticComplexity(t *testing.T) {
	a := NewStructureAnalyzer()

	var b strings.Builder
	b.WriteString("def branchy(x):\n")
	for i := 0; i < 10; i++ {
		b.WriteString("    if x:\n")
		b.WriteString("        x = x - 1\n")
	}
	b.WriteString("    return x\n")

	res, err := a.Analyze(b.String())
	require.NoError(t, err)

	complexity := res.Details["cyclomatic_complexity"].(map[string]int)
	assert.Greater(t, complexity["branchy"], 10)

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "high cyclomatic complexity") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
}

func TestStructureAnalyzerLateImports(t *testing.T) {
	a := NewStructureAnalyzer()

	var b strings.Builder
	for i := 0; i < 24; i++ {
		b.WriteString("x = 1\n")
	}
	b.WriteString("import os\n")

	res, err := a.Analyze(b.String())
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if f.Message == "Imports appear too late in the code" {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
	assert.Equal(t, 85.0, res.Details["import_structure_score"])
}

func TestStructureAnalyzerGlobals(t *testing.T) {
	a := NewStructureAnalyzer()

	snippet := strings.Join([]string{
		"def bump():",
		"    global counter",
		"    counter = counter + 1",
		"    return counter",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "global variables") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
	assert.Contains(t, res.Suggestions, "Minimize use of global variables and module-level state")
}

func TestStructureAnalyzerMutualCalls(t *testing.T) {
	a := NewStructureAnalyzer()

	snippet := strings.Join([]string{
		"def ping(n):",
		"    return pong(n - 1)",
		"",
		"def pong(n):",
		"    return ping(n - 1)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "'ping' and 'pong' call each other") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
	assert.Less(t, res.Details["dependency_score"], 100.0)
}
