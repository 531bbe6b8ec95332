package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvancedTechniquesBaseline(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	// Plain code with nothing advanced sits at the 50 baseline.
	res, err := a.Analyze("x = 1\ny = x")
	require.NoError(t, err)

	assert.Equal(t, 50.0, res.Score)
	assert.Equal(t, 50.0, res.Details["decorator_score"])
	assert.Equal(t, 50.0, res.Details["method_score"])
	assert.Equal(t, 50.0, res.Details["pattern_score"])
	assert.Equal(t, 50.0, res.Details["optimization_score"])
	assert.Equal(t, 0.0, res.Details["library_bonus"])
	assert.Len(t, res.Suggestions, 4)
}

func TestAdvancedTechniquesLibraryBonus(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	// Three libraries across three categories earn the full 30 point bonus
	// on top of the 50 baseline.
	snippet := strings.Join([]string{
		"import sklearn",
		"import scipy",
		"import geopandas",
		"x = 1",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.Score)
	assert.Equal(t, 30.0, res.Details["library_bonus"])

	categories := res.Details["library_categories"].(map[string][]string)
	assert.Len(t, categories, 3)
	assert.Equal(t, []string{"sklearn"}, categories["ml"])
	assert.Equal(t, []string{"scipy"}, categories["stats"])
	assert.Equal(t, []string{"geopandas"}, categories["geo"])
}

func TestAdvancedTechniquesLibraryBonusCaps(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"import sklearn",
		"import scipy",
		"import geopandas",
		"import numba",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	// Four categories still cap at 30.
	assert.Equal(t, 30.0, res.Details["library_bonus"])
	assert.Equal(t, 80.0, res.Score)
}

func TestAdvancedTechniquesSameCategoryCountsOnce(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	res, err := a.Analyze("import sklearn\nimport torch\nimport keras")
	require.NoError(t, err)

	assert.Equal(t, 10.0, res.Details["library_bonus"])

	categories := res.Details["library_categories"].(map[string][]string)
	assert.Equal(t, []string{"keras", "sklearn", "torch"}, categories["ml"])
}

func TestAdvancedTechniquesDecorators(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"class Model:",
		"    @property",
		"    def size(self):",
		"        return self._size",
		"    @staticmethod",
		"    def default():",
		"        return Model()",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	// Two distinct decorators at 10 each above the baseline.
	assert.Equal(t, 70.0, res.Details["decorator_score"])

	found := false
	for _, f := range res.Findings {
		if strings.Contains(f.Message, "Found 2 decorator uses") {
			found = true
		}
	}
	assert.True(t, found, "got %v", res.Findings)
}

func TestAdvancedTechniquesMagicMethods(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"class Box:",
		"    def __getitem__(self, key):",
		"        return self.items[key]",
		"    def __setitem__(self, key, value):",
		"        self.items[key] = value",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	assert.Equal(t, 70.0, res.Details["method_score"])
}

func TestAdvancedTechniquesGeneratorsAndAsync(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"def stream(items):",
		"    for item in items:",
		"        yield item",
		"",
		"async def fetch(url):",
		"    return await client.get(url)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	optimizations := res.Details["optimizations"].([]string)
	assert.Contains(t, optimizations, "generator")
	assert.Contains(t, optimizations, "async")
}

func TestAdvancedTechniquesYieldInStringDoesNotCount(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	res, err := a.Analyze(`message = "crops yield more in spring"`)
	require.NoError(t, err)

	assert.Equal(t, 50.0, res.Details["optimization_score"])
}

func TestAdvancedTechniquesDesignPatterns(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"class ModelFactory:",
		"    def create(self, kind):",
		"        return registry[kind]()",
		"    def build(self, kind, args):",
		"        return registry[kind](args)",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	patterns := res.Details["design_patterns"].([]string)
	assert.Contains(t, patterns, "Factory")
	assert.Equal(t, 65.0, res.Details["pattern_score"])
}

func TestAdvancedTechniquesAlgorithmDetection(t *testing.T) {
	a := NewAdvancedTechniquesAnalyzer()

	snippet := strings.Join([]string{
		"def bubble_sort(items):",
		"    for i in range(len(items)):",
		"        for j in range(len(items) - i - 1):",
		"            if items[j] > items[j + 1]:",
		"                items[j], items[j + 1] = items[j + 1], items[j]",
		"    return items",
	}, "\n")

	res, err := a.Analyze(snippet)
	require.NoError(t, err)

	algos := res.Details["algorithms"].([]map[string]interface{})
	require.Len(t, algos, 1)
	assert.Equal(t, "bubble_sort", algos[0]["name"])
	assert.Equal(t, "sorting", algos[0]["type"])
	assert.Equal(t, "O(n^2)", algos[0]["complexity"])
}
