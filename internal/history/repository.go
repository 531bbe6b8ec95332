package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

const runCacheSize = 256

// ErrRunNotFound reports a lookup for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Repository persists and retrieves analysis runs. Reads of single runs go
// through an LRU; run records are immutable once saved, so cached entries
// never go stale.
type Repository struct {
	store *Store
	cache *lru.Cache[string, *Run]
}

// NewRepository creates a repository over an open store.
func NewRepository(store *Store) (*Repository, error) {
	cache, err := lru.New[string, *Run](runCacheSize)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create run cache", err)
	}

	return &Repository{store: store, cache: cache}, nil
}

// SaveRun persists a completed run.
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	stmt, err := r.store.stmt("insert_run")
	if err != nil {
		return err
	}

	report := run.Report
	if len(report) == 0 {
		report = []byte("{}")
	}

	_, err = stmt.ExecContext(ctx,
		run.ID, run.NotebookPath, run.OverallScore, run.QualityScore,
		run.PresentationScore, run.AnalyzerCount, run.ErrorCount,
		run.DurationMS, string(report), run.CreatedAt)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to save run %s", run.ID), err)
	}

	r.cache.Add(run.ID, run)
	return nil
}

// GetRun returns one run with its full report, or ErrRunNotFound.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}

	stmt, err := r.store.stmt("get_run")
	if err != nil {
		return nil, err
	}

	var run Run
	var report string
	err = stmt.QueryRowContext(ctx, id).Scan(
		&run.ID, &run.NotebookPath, &run.OverallScore, &run.QualityScore,
		&run.PresentationScore, &run.AnalyzerCount, &run.ErrorCount,
		&run.DurationMS, &report, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load run %s", id), err)
	}
	run.Report = []byte(report)

	r.cache.Add(run.ID, &run)
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, without report blobs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, err := r.store.stmt("list_runs")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list runs", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.NotebookPath, &run.OverallScore, &run.QualityScore,
			&run.PresentationScore, &run.AnalyzerCount, &run.ErrorCount,
			&run.DurationMS, &run.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan run row", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate runs", err)
	}

	return runs, nil
}

// RecentScores returns up to limit score points, newest first.
func (r *Repository) RecentScores(ctx context.Context, limit int) ([]ScorePoint, error) {
	if limit <= 0 {
		limit = statsSampleSize
	}

	stmt, err := r.store.stmt("list_scores")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list scores", err)
	}
	defer rows.Close()

	points := make([]ScorePoint, 0, limit)
	for rows.Next() {
		var p ScorePoint
		if err := rows.Scan(&p.RunID, &p.Score, &p.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan score row", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate scores", err)
	}

	return points, nil
}

// Count returns the total number of persisted runs.
func (r *Repository) Count(ctx context.Context) (int, error) {
	stmt, err := r.store.stmt("count_runs")
	if err != nil {
		return 0, err
	}

	var count int
	if err := stmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count runs", err)
	}
	return count, nil
}

// Stats summarizes the recent score history.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	points, err := r.RecentScores(ctx, statsSampleSize)
	if err != nil {
		return nil, err
	}
	return Summarize(points), nil
}

// CacheStats exposes the LRU occupancy for the stats endpoints.
func (r *Repository) CacheStats() map[string]interface{} {
	return map[string]interface{}{
		"entries":  r.cache.Len(),
		"capacity": runCacheSize,
	}
}
