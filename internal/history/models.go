package history

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted analysis run. Report holds the full serialized
// report document; the scalar columns exist so listings and statistics
// never have to decode it.
type Run struct {
	ID                string          `json:"id"`
	NotebookPath      string          `json:"notebook_path"`
	OverallScore      float64         `json:"overall_score"`
	QualityScore      float64         `json:"quality_score"`
	PresentationScore float64         `json:"presentation_score"`
	AnalyzerCount     int             `json:"analyzer_count"`
	ErrorCount        int             `json:"error_count"`
	DurationMS        int64           `json:"duration_ms"`
	Report            json.RawMessage `json:"report,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ScorePoint is the slim projection used by score statistics.
type ScorePoint struct {
	RunID     string    `json:"run_id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRun creates a run record with a generated ID and creation time.
// The caller fills in the scores and report once the analysis completes.
func NewRun(notebookPath string) *Run {
	return &Run{
		ID:           uuid.New().String(),
		NotebookPath: notebookPath,
		CreatedAt:    time.Now().UTC(),
	}
}
