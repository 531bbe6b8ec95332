package types

import (
	"encoding/json"
	"errors"
)

// AnalyzeRequest is the payload for the analyze endpoint. Exactly one of
// Source or Notebook must be set: Source carries a raw Python snippet,
// Notebook a full .ipynb document.
type AnalyzeRequest struct {
	Source   string          `json:"source,omitempty"`
	Notebook json.RawMessage `json:"notebook,omitempty"`

	// Path is an optional display name recorded with the run.
	Path string `json:"path,omitempty"`

	// Parallel overrides the server's default analyzer execution mode.
	Parallel *bool `json:"parallel,omitempty"`
}

// Validate checks the structural rules that hold regardless of payload size
func (r *AnalyzeRequest) Validate() error {
	hasSource := r.Source != ""
	hasNotebook := len(r.Notebook) > 0

	switch {
	case !hasSource && !hasNotebook:
		return errors.New("one of source or notebook is required")
	case hasSource && hasNotebook:
		return errors.New("source and notebook are mutually exclusive")
	}
	return nil
}
