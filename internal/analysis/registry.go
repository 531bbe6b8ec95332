package analysis

import (
	"fmt"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

// Registry holds analyzers in registration order. Sequential runs execute in
// exactly this order; parallel runs draw from the same set. A Registry is
// built once at startup and read-only afterwards.
type Registry struct {
	order  []Analyzer
	byName map[string]Analyzer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Analyzer{}}
}

// Register appends an analyzer. Names must be unique across categories.
func (r *Registry) Register(a Analyzer) error {
	if a == nil {
		return apperrors.NewValidationError("cannot register a nil analyzer")
	}
	if _, exists := r.byName[a.Name()]; exists {
		return apperrors.NewValidationError(fmt.Sprintf("analyzer %q is already registered", a.Name()))
	}
	if !a.Category().Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("analyzer %q has unknown category %q", a.Name(), a.Category()))
	}
	r.byName[a.Name()] = a
	r.order = append(r.order, a)
	return nil
}

// Analyzers returns the registered analyzers in registration order.
func (r *Registry) Analyzers() []Analyzer {
	out := make([]Analyzer, len(r.order))
	copy(out, r.order)
	return out
}

// Get looks an analyzer up by name.
func (r *Registry) Get(name string) (Analyzer, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// ByCategory returns the analyzers of one category, registration order kept.
func (r *Registry) ByCategory(c Category) []Analyzer {
	var out []Analyzer
	for _, a := range r.order {
		if a.Category() == c {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered analyzers.
func (r *Registry) Len() int { return len(r.order) }

// NewDefaultRegistry wires the nine stock analyzers in their canonical
// order, quality first.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []Analyzer{
		NewFormattingAnalyzer(),
		NewDocumentationAnalyzer(),
		NewConcisenessAnalyzer(),
		NewStructureAnalyzer(),
		NewDataMergeAnalyzer(),
		NewReusabilityAnalyzer(),
		NewAdvancedTechniquesAnalyzer(),
		NewVizFormattingAnalyzer(),
		NewVizTypesAnalyzer(),
	} {
		_ = r.Register(a)
	}
	return r
}

// weightable is implemented by analyzers that accept sub-metric weight
// overrides from configuration.
type weightable interface {
	applyWeights(map[string]float64) error
}

// NewRegistryWithConfig wires the stock analyzers and applies the validated
// config's sub-metric weight overrides.
func NewRegistryWithConfig(cfg *Config) (*Registry, error) {
	r := NewDefaultRegistry()
	for name, group := range cfg.SubMetricWeights {
		a, ok := r.Get(name)
		if !ok {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("sub-metric weights reference unknown analyzer %q", name), nil)
		}
		w, ok := a.(weightable)
		if !ok {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("analyzer %q does not accept weight overrides", name), nil)
		}
		if err := w.applyWeights(group); err != nil {
			return nil, err
		}
	}
	return r, nil
}