package history

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func sampleRun(notebook string, score float64) *Run {
	run := NewRun(notebook)
	run.OverallScore = score
	run.QualityScore = score - 2
	run.PresentationScore = score + 3
	run.AnalyzerCount = 9
	run.ErrorCount = 1
	run.DurationMS = 42
	run.Report = json.RawMessage(`{"summary":{"overall_score":` + "80" + `}}`)
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	run := sampleRun("exploration.ipynb", 81.5)
	require.NoError(t, repo.SaveRun(context.Background(), run))

	// A second repository over the same store starts with a cold cache,
	// so this read exercises the database round trip.
	fresh, err := NewRepository(store)
	require.NoError(t, err)

	got, err := fresh.GetRun(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "exploration.ipynb", got.NotebookPath)
	assert.Equal(t, 81.5, got.OverallScore)
	assert.Equal(t, 79.5, got.QualityScore)
	assert.Equal(t, 84.5, got.PresentationScore)
	assert.Equal(t, 9, got.AnalyzerCount)
	assert.Equal(t, 1, got.ErrorCount)
	assert.Equal(t, int64(42), got.DurationMS)
	assert.JSONEq(t, string(run.Report), string(got.Report))
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	_, err = repo.GetRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRunServedFromCache(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	run := sampleRun("cached.ipynb", 70)
	require.NoError(t, repo.SaveRun(context.Background(), run))

	got, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Same(t, run, got)

	stats := repo.CacheStats()
	assert.Equal(t, 1, stats["entries"])
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	names := []string{"first.ipynb", "second.ipynb", "third.ipynb"}
	for i, name := range names {
		run := sampleRun(name, 60+float64(i)*10)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.SaveRun(context.Background(), run))
	}

	runs, err := repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "third.ipynb", runs[0].NotebookPath)
	assert.Equal(t, "second.ipynb", runs[1].NotebookPath)
	assert.Equal(t, "first.ipynb", runs[2].NotebookPath)

	// Listings stay slim; the report blob only loads with a single run.
	assert.Empty(t, runs[0].Report)
}

func TestListRunsHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		run := sampleRun("nb.ipynb", 75)
		run.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.SaveRun(context.Background(), run))
	}

	runs, err := repo.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCountAndStats(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	scores := []float64{70, 75, 80}
	for i, score := range scores {
		run := sampleRun("trend.ipynb", score)
		run.CreatedAt = time.Now().UTC().Add(time.Duration(i-3) * time.Minute)
		require.NoError(t, repo.SaveRun(context.Background(), run))
	}

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 80.0, stats.Latest)
	assert.Equal(t, 75.0, stats.Median)
	assert.Equal(t, 80.0, stats.Best)
	assert.Equal(t, 70.0, stats.Worst)
}

func TestSaveRunWithoutReport(t *testing.T) {
	store := newTestStore(t)
	repo, err := NewRepository(store)
	require.NoError(t, err)

	run := NewRun("bare.ipynb")
	run.OverallScore = 50
	require.NoError(t, repo.SaveRun(context.Background(), run))

	fresh, err := NewRepository(store)
	require.NoError(t, err)

	got, err := fresh.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(got.Report))
}
