package analysis

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/pysrc"
)

// Analyzer is one heuristic check over a snippet. Implementations keep no
// per-call state on the receiver; every Analyze call works on its own
// collector so a shared instance is safe under concurrent invocations.
type Analyzer interface {
	Name() string
	Category() Category
	Analyze(snippet string) (*AnalyzerResult, error)
}

// metricWeights is the named weight table an analyzer applies to its
// sub-metric scores.
type metricWeights map[string]float64

// analyzerBase carries the identity, lifecycle toggle and sub-metric weight
// table every analyzer embeds.
type analyzerBase struct {
	name     string
	category Category
	weights  metricWeights
	active   atomic.Bool
}

func (b *analyzerBase) init(name string, category Category, weights metricWeights) {
	b.name = name
	b.category = category
	b.weights = weights
	b.active.Store(true)
}

// applyWeights overrides sub-metric weights from configuration. Unknown
// sub-metric names are configuration errors. The merged table must still sum
// to 1.0 within tolerance: Config.Validate only sees the override group in
// isolation, and a partial group that merges into a table summing past 1.0
// would make Aggregate renormalize.
func (b *analyzerBase) applyWeights(overrides map[string]float64) error {
	merged := make(metricWeights, len(b.weights))
	for key, value := range b.weights {
		merged[key] = value
	}
	for key, value := range overrides {
		if _, ok := b.weights[key]; !ok {
			return apperrors.NewConfigurationError(
				fmt.Sprintf("analyzer %s has no sub-metric %q", b.name, key), nil)
		}
		merged[key] = value
	}
	if err := validWeightGroup(fmt.Sprintf("effective %s sub-metric weights", b.name), merged); err != nil {
		return err
	}
	b.weights = merged
	return nil
}

// Name returns the registry identity of the analyzer.
func (b *analyzerBase) Name() string { return b.name }

// Category returns the score group the analyzer reports into.
func (b *analyzerBase) Category() Category { return b.category }

// Active reports whether Analyze currently accepts calls.
func (b *analyzerBase) Active() bool { return b.active.Load() }

// Activate enables Analyze calls.
func (b *analyzerBase) Activate() { b.active.Store(true) }

// Deactivate makes subsequent Analyze calls fail until reactivated.
func (b *analyzerBase) Deactivate() { b.active.Store(false) }

// guard enforces the call-side contract shared by all analyzers.
func (b *analyzerBase) guard(snippet string) error {
	if !b.active.Load() {
		return apperrors.NewValidationError(fmt.Sprintf("analyzer %s is inactive", b.name))
	}
	if strings.TrimSpace(snippet) == "" {
		return apperrors.NewValidationError("snippet must not be empty")
	}
	return nil
}

// result funnels every analyzer outcome through the shared construction
// contract.
func (b *analyzerBase) result(score float64, findings []Finding, suggestions []string, details map[string]interface{}) (*AnalyzerResult, error) {
	return NewAnalyzerResult(b.name, b.category, score, findings, suggestions, details)
}

// parseSnippet builds the per-invocation tree. A snippet that cannot be
// structured degrades to an empty tree plus a finding, so the analyzer
// reports its neutral baselines instead of failing; one broken cell must not
// block the run.
func parseSnippet(snippet string) (*pysrc.Module, *Finding) {
	m, err := pysrc.Parse(snippet)
	if err == nil {
		return m, nil
	}

	line := 0
	var pe *pysrc.ParseError
	if errors.As(err, &pe) {
		line = pe.Line
	}
	empty, _ := pysrc.Parse("")
	return empty, &Finding{Message: fmt.Sprintf("parse failure: %v", err), Line: line}
}