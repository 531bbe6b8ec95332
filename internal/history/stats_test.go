package history

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected float64
	}{
		{
			name:     "empty slice",
			input:    []float64{},
			expected: 0,
		},
		{
			name:     "single score",
			input:    []float64{72.5},
			expected: 72.5,
		},
		{
			name:     "odd length",
			input:    []float64{60, 70, 80, 90, 100},
			expected: 80,
		},
		{
			name:     "even length",
			input:    []float64{60, 70, 80, 90},
			expected: 75,
		},
		{
			name:     "unsorted input",
			input:    []float64{90, 60, 80, 70, 100},
			expected: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, median(tt.input))
		})
	}
}

func TestRobustZ(t *testing.T) {
	sample := []float64{60, 65, 70, 75, 80, 85, 90}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{
			name:     "value at median",
			value:    75,
			expected: 0,
		},
		{
			name:     "value above median",
			value:    90,
			expected: math.Asinh(15 / (1.4826 * 10)),
		},
		{
			name:     "value below median",
			value:    60,
			expected: math.Asinh(-15 / (1.4826 * 10)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RobustZ(tt.value, sample), 1e-9)
		})
	}
}

func TestRobustZUniformSample(t *testing.T) {
	// Zero MAD falls back to unit scale instead of dividing by zero.
	sample := []float64{80, 80, 80, 80}
	assert.InDelta(t, math.Asinh(5), RobustZ(85, sample), 1e-9)
}

func TestRobustZStableUnderOutliers(t *testing.T) {
	clean := []float64{60, 65, 70, 75, 80, 85, 90}
	polluted := []float64{60, 65, 70, 75, 80, 85, 0}

	diff := math.Abs(RobustZ(72, clean) - RobustZ(72, polluted))
	assert.Less(t, diff, 1.0)
}

func TestDecayWeight(t *testing.T) {
	tests := []struct {
		name      string
		deltaDays float64
		tau       float64
		expected  float64
	}{
		{
			name:      "today weighs one",
			deltaDays: 0,
			tau:       30,
			expected:  1,
		},
		{
			name:      "one horizon ago",
			deltaDays: 30,
			tau:       30,
			expected:  math.Exp(-1),
		},
		{
			name:      "zero tau",
			deltaDays: 10,
			tau:       0,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DecayWeight(tt.deltaDays, tt.tau), 1e-12)
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)

	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.Latest)
	assert.Zero(t, stats.Trend)
	assert.Empty(t, stats.Outliers)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	points := []ScorePoint{
		{RunID: "run-3", Score: 82, CreatedAt: now},
		{RunID: "run-2", Score: 78, CreatedAt: now.Add(-24 * time.Hour)},
		{RunID: "run-1", Score: 74, CreatedAt: now.Add(-48 * time.Hour)},
	}

	stats := Summarize(points)

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 82.0, stats.Latest)
	assert.Equal(t, 82.0, stats.Best)
	assert.Equal(t, 74.0, stats.Worst)
	assert.Equal(t, 78.0, stats.Median)
	assert.InDelta(t, 1.4826*4, stats.Spread, 0.01)

	// Recent runs weigh more, so the trend sits above the plain mean.
	assert.Greater(t, stats.Trend, 78.0)
	assert.LessOrEqual(t, stats.Trend, 82.0)
	assert.Empty(t, stats.Outliers)
}

func TestSummarizeOrderIndependence(t *testing.T) {
	now := time.Now()
	points := []ScorePoint{
		{RunID: "a", Score: 70, CreatedAt: now.Add(-72 * time.Hour)},
		{RunID: "b", Score: 85, CreatedAt: now},
		{RunID: "c", Score: 75, CreatedAt: now.Add(-24 * time.Hour)},
	}
	reversed := []ScorePoint{points[1], points[2], points[0]}

	a := Summarize(points)
	b := Summarize(reversed)

	assert.Equal(t, a.Latest, b.Latest)
	assert.Equal(t, a.Median, b.Median)
	assert.InDelta(t, a.Trend, b.Trend, 0.01)
}

func TestSummarizeFlagsOutliers(t *testing.T) {
	now := time.Now()
	points := []ScorePoint{
		{RunID: "steady-1", Score: 80, CreatedAt: now},
		{RunID: "steady-2", Score: 81, CreatedAt: now.Add(-1 * time.Hour)},
		{RunID: "steady-3", Score: 79, CreatedAt: now.Add(-2 * time.Hour)},
		{RunID: "steady-4", Score: 80, CreatedAt: now.Add(-3 * time.Hour)},
		{RunID: "steady-5", Score: 82, CreatedAt: now.Add(-4 * time.Hour)},
		{RunID: "crash", Score: 5, CreatedAt: now.Add(-5 * time.Hour)},
	}

	stats := Summarize(points)

	assert.Equal(t, []string{"crash"}, stats.Outliers)
}
