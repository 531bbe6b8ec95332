package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

const orchestratorSnippet = `import pandas as pd

def load(path):
    """Load a dataset."""
    return pd.read_csv(path)

df = load("data.csv")
`

// panickingAnalyzer blows up on every call; the orchestrator must contain it.
type panickingAnalyzer struct {
	analyzerBase
}

func newPanickingAnalyzer() *panickingAnalyzer {
	a := &panickingAnalyzer{}
	a.init("broken", CategoryQuality, metricWeights{"only": 1.0})
	return a
}

func (a *panickingAnalyzer) Analyze(snippet string) (*AnalyzerResult, error) {
	panic("boom")
}

func TestEngineRunsAllAnalyzers(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	result, err := engine.AnalyzeSource(context.Background(), orchestratorSnippet)
	require.NoError(t, err)

	assert.Equal(t, 9, result.SuccessCount())
	assert.Empty(t, result.Errors)
	assert.GreaterOrEqual(t, result.OverallScore, 0.0)
	assert.LessOrEqual(t, result.OverallScore, 100.0)
}

func TestRunStateMachine(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	run := engine.NewSourceRun(orchestratorSnippet)
	assert.Equal(t, RunStateIdle, run.State())

	_, err = run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStateDone, run.State())
}

func TestRunFailsOnUnreadableFile(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	run := engine.NewFileRun(filepath.Join(t.TempDir(), "missing.ipynb"))
	_, err = run.Execute(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryIO))
	assert.Equal(t, RunStateFailed, run.State())
}

func TestPartialFailureIsolation(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	structure, ok := engine.Registry().Get("structure")
	require.True(t, ok)
	structure.(interface{ Deactivate() }).Deactivate()

	result, err := engine.AnalyzeSource(context.Background(), orchestratorSnippet)
	require.NoError(t, err)

	// The broken analyzer is recorded; the other eight still complete and
	// the score comes from the successes only.
	assert.Equal(t, 8, result.SuccessCount())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Error in quality/structure:")
	assert.Greater(t, result.OverallScore, 0.0)
}

func TestPanickingAnalyzerIsContained(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newPanickingAnalyzer()))
	require.NoError(t, registry.Register(NewFormattingAnalyzer()))

	engine, err := NewEngineWithRegistry(nil, registry)
	require.NoError(t, err)

	result, err := engine.AnalyzeSource(context.Background(), orchestratorSnippet)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Error in quality/broken: analyzer panicked")
}

func TestSequentialAndParallelAgree(t *testing.T) {
	sequential, err := NewEngine(nil)
	require.NoError(t, err)

	parallelCfg := DefaultConfig()
	parallelCfg.Parallel = true
	parallelCfg.Workers = 4
	parallel, err := NewEngine(parallelCfg)
	require.NoError(t, err)

	seqResult, err := sequential.AnalyzeSource(context.Background(), orchestratorSnippet)
	require.NoError(t, err)
	parResult, err := parallel.AnalyzeSource(context.Background(), orchestratorSnippet)
	require.NoError(t, err)

	assert.Equal(t, seqResult.OverallScore, parResult.OverallScore)
	assert.Equal(t, seqResult.Errors, parResult.Errors)

	for _, c := range Categories() {
		require.Equal(t, len(seqResult.AnalyzerResults[c]), len(parResult.AnalyzerResults[c]))
		for i, seq := range seqResult.AnalyzerResults[c] {
			par := parResult.AnalyzerResults[c][i]
			assert.Equal(t, seq.AnalyzerName, par.AnalyzerName)
			assert.Equal(t, seq.Score, par.Score)
			assert.Equal(t, seq.Findings, par.Findings)
		}
	}
}

func TestExpiredContextReportsTimeouts(t *testing.T) {
	for _, parallelMode := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Parallel = parallelMode
		engine, err := NewEngine(cfg)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := engine.AnalyzeSource(ctx, orchestratorSnippet)
		require.NoError(t, err)

		assert.Equal(t, 0, result.SuccessCount())
		assert.Len(t, result.Errors, 9)
		for _, msg := range result.Errors {
			assert.True(t, strings.HasSuffix(msg, "analysis timed out"), msg)
		}
		assert.Equal(t, 0.0, result.OverallScore)
	}
}

func TestEmptySourceCompletesWithZeroScore(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	result, err := engine.AnalyzeSource(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, result.SuccessCount())
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0.0, result.OverallScore)
}

func TestAnalyzeNotebookMetadata(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	result, err := engine.AnalyzeSource(context.Background(), "x = 1\n")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata["total_cells"])
	assert.Equal(t, 1, result.Metadata["code_cell_count"])
	assert.Equal(t, 0, result.Metadata["documentation_cell_count"])
	assert.WithinDuration(t, time.Now(), result.Timestamp, 5*time.Second)
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CategoryWeights[CategoryQuality] = 0.9

	_, err := NewEngine(cfg)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryConfiguration, appErr.Category)
}

func TestEngineWithRegistryRejectsEmpty(t *testing.T) {
	_, err := NewEngineWithRegistry(nil, NewRegistry())
	require.Error(t, err)
}
