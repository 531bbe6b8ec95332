package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/notebook"
)

// RunState is the lifecycle phase of one orchestrated analysis run.
type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateReading     RunState = "reading"
	RunStateAnalyzing   RunState = "analyzing"
	RunStateAggregating RunState = "aggregating"
	RunStateDone        RunState = "done"
	RunStateFailed      RunState = "failed"
)

// Engine runs the registered analyzers over notebooks and snippets. An
// Engine is safe for concurrent use; all per-run state lives on the Run.
type Engine struct {
	cfg      *Config
	registry *Registry
	pre      *Preprocessor
}

// NewEngine builds an engine from cfg, validating it and applying any
// configured sub-metric weight overrides to the analyzer registry.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := NewRegistryWithConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{cfg: cfg, registry: registry, pre: NewPreprocessor(cfg)}, nil
}

// NewEngineWithRegistry builds an engine over a caller-assembled registry,
// for callers that register their own analyzers alongside or instead of the
// stock nine.
func NewEngineWithRegistry(cfg *Config, registry *Registry) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil || registry.Len() == 0 {
		return nil, apperrors.NewValidationError("registry must hold at least one analyzer")
	}

	return &Engine{cfg: cfg, registry: registry, pre: NewPreprocessor(cfg)}, nil
}

// Registry exposes the engine's analyzer registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Config exposes the engine's validated configuration.
func (e *Engine) Config() *Config { return e.cfg }

// AnalyzeFile runs the full pipeline over a notebook or script file.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*NotebookAnalysisResult, error) {
	return e.NewFileRun(path).Execute(ctx)
}

// AnalyzeNotebook runs over an already parsed notebook.
func (e *Engine) AnalyzeNotebook(ctx context.Context, nb *notebook.Notebook) (*NotebookAnalysisResult, error) {
	return e.NewNotebookRun(nb).Execute(ctx)
}

// AnalyzeSource runs over a raw source snippet.
func (e *Engine) AnalyzeSource(ctx context.Context, source string) (*NotebookAnalysisResult, error) {
	return e.NewSourceRun(source).Execute(ctx)
}

// Run is one orchestrated analysis. It moves through Idle → Reading →
// Analyzing → Aggregating and ends Done or Failed; State is readable while
// Execute is in flight. Create a fresh Run per analysis.
type Run struct {
	engine *Engine
	path   string
	read   func(ctx context.Context) (*notebook.Notebook, error)
	state  atomic.Value
}

// NewFileRun prepares a run that reads path during its Reading phase.
func (e *Engine) NewFileRun(path string) *Run {
	return e.newRun(path, func(ctx context.Context) (*notebook.Notebook, error) {
		return notebook.Read(path)
	})
}

// NewNotebookRun prepares a run over an already parsed notebook.
func (e *Engine) NewNotebookRun(nb *notebook.Notebook) *Run {
	return e.newRun(nb.Path, func(ctx context.Context) (*notebook.Notebook, error) {
		return nb, nil
	})
}

// NewSourceRun prepares a run over a raw source snippet.
func (e *Engine) NewSourceRun(source string) *Run {
	return e.newRun("", func(ctx context.Context) (*notebook.Notebook, error) {
		return notebook.FromSource(source), nil
	})
}

func (e *Engine) newRun(path string, read func(context.Context) (*notebook.Notebook, error)) *Run {
	r := &Run{engine: e, path: path, read: read}
	r.state.Store(RunStateIdle)
	return r
}

// State returns the run's current phase.
func (r *Run) State() RunState {
	return r.state.Load().(RunState)
}

func (r *Run) transition(to RunState) {
	from := r.State()
	r.state.Store(to)
	slog.Debug("analysis run state change", "path", r.path, "from", from, "to", to)
}

// Execute drives the run to completion. Analyzer failures are recorded in
// the result's Errors and never fail the run; only container-level reading
// problems do. A notebook without analyzable code completes with zero
// results and an overall score of 0.
func (r *Run) Execute(ctx context.Context) (*NotebookAnalysisResult, error) {
	started := time.Now()

	r.transition(RunStateReading)
	nb, err := r.read(ctx)
	if err != nil {
		r.transition(RunStateFailed)
		return nil, err
	}

	snippet := r.engine.pre.JoinSources(nb.CodeSources())

	result := newNotebookAnalysisResult(r.path, r.engine.cfg)
	result.Metadata = metadataMap(nb.Metadata)

	r.transition(RunStateAnalyzing)
	if snippet != "" {
		if r.engine.cfg.Parallel {
			r.analyzeParallel(ctx, snippet, result)
		} else {
			r.analyzeSequential(ctx, snippet, result)
		}
	}

	r.transition(RunStateAggregating)
	result.Duration = time.Since(started)

	r.transition(RunStateDone)
	slog.Info("analysis run complete",
		"path", r.path,
		"overall_score", result.OverallScore,
		"analyzers", result.SuccessCount(),
		"errors", len(result.Errors),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// analyzeSequential walks the registry in order. Once the context expires
// every remaining analyzer is reported as timed out.
func (r *Run) analyzeSequential(ctx context.Context, snippet string, result *NotebookAnalysisResult) {
	for _, analyzer := range r.engine.registry.Analyzers() {
		if ctx.Err() != nil {
			result.AddError(timeoutMessage(analyzer))
			continue
		}

		res, err := invoke(analyzer, snippet)
		if err != nil {
			result.AddError(failureMessage(analyzer, err))
			continue
		}
		result.Add(res)
	}
}

// analyzeParallel fans the invocations out to a bounded worker pool.
// Outcomes are folded back in registry order, so a parallel run reports the
// same result set, the same error list and the same scores as a sequential
// one over the same snippet.
func (r *Run) analyzeParallel(ctx context.Context, snippet string, result *NotebookAnalysisResult) {
	analyzers := r.engine.registry.Analyzers()

	type invocation struct {
		res      *AnalyzerResult
		err      error
		timedOut bool
	}
	out := make([]invocation, len(analyzers))

	workers := r.engine.cfg.WorkerCount()
	if workers > len(analyzers) {
		workers = len(analyzers)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					out[idx] = invocation{timedOut: true}
					continue
				}
				res, err := invoke(analyzers[idx], snippet)
				out[idx] = invocation{res: res, err: err}
			}
		}()
	}

	for idx := range analyzers {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for idx, analyzer := range analyzers {
		switch {
		case out[idx].timedOut:
			result.AddError(timeoutMessage(analyzer))
		case out[idx].err != nil:
			result.AddError(failureMessage(analyzer, out[idx].err))
		default:
			result.Add(out[idx].res)
		}
	}
}

// invoke wraps one analyzer call with panic recovery; a broken analyzer
// must surface as its own failure, not take down the run.
func invoke(a Analyzer, snippet string) (res *AnalyzerResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("analyzer panicked: %v", rec)
		}
	}()
	return a.Analyze(snippet)
}

func failureMessage(a Analyzer, err error) string {
	return fmt.Sprintf("Error in %s/%s: %v", a.Category(), a.Name(), err)
}

func timeoutMessage(a Analyzer) string {
	return fmt.Sprintf("Error in %s/%s: analysis timed out", a.Category(), a.Name())
}

func metadataMap(meta notebook.Metadata) map[string]interface{} {
	m := map[string]interface{}{
		"total_cells":              meta.TotalCells,
		"code_cell_count":          meta.CodeCellCount,
		"documentation_cell_count": meta.DocumentationCellCount,
	}
	if meta.KernelName != "" {
		m["kernel_name"] = meta.KernelName
	}
	if meta.LanguageVersion != "" {
		m["language_version"] = meta.LanguageVersion
	}
	return m
}
