package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/encoding"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/output"
)

var (
	analyzeJSON     bool
	analyzeFindings bool
	analyzeParallel bool
	analyzeWorkers  int
	analyzeTimeout  time.Duration
	analyzeSave     bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze <file> [file...]",
		Short: "Analyze notebooks and report their quality scores",
		Long: `Analyze one or more notebook (.ipynb) or Python (.py) files and print
a per-analyzer score breakdown with an overall 0-100 score.

Each run is recorded in the local history unless --save=false is given.
Analyzer failures inside a run are reported but never abort the run;
the remaining analyzers still contribute to the score.`,
		Example: `  # Score a single notebook
  notebook-analyzer analyze exploration.ipynb

  # Full findings and suggestions
  notebook-analyzer analyze --findings exploration.ipynb

  # Machine-readable output
  notebook-analyzer analyze --json exploration.ipynb

  # Parallel analyzer execution with a deadline
  notebook-analyzer analyze --parallel --timeout 30s big-notebook.ipynb`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the raw report document")
	analyzeCmd.Flags().BoolVar(&analyzeFindings, "findings", false, "list every finding and suggestion")
	analyzeCmd.Flags().BoolVar(&analyzeParallel, "parallel", false, "run analyzers concurrently")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "worker pool size for --parallel (0 = one per CPU)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "per-invocation deadline (0 = none)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", true, "record runs in the local history")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = analyzeParallel
	}
	if analyzeWorkers > 0 {
		cfg.Workers = analyzeWorkers
	}

	engine, err := analysis.NewEngine(cfg)
	if err != nil {
		return err
	}

	var repo *history.Repository
	if analyzeSave {
		var store *history.Store
		repo, store, err = openRepository()
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx := cmd.Context()
	if analyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, analyzeTimeout)
		defer cancel()
	}

	var bar interface{ Add(int) error }
	if len(args) > 1 && !analyzeJSON {
		bar = output.NewProgress(len(args), "analyzing notebooks")
	}

	failed := 0
	for i, path := range args {
		if err := analyzeOne(ctx, engine, repo, path); err != nil {
			failed++
			fmt.Printf("%s: %v\n", path, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if !analyzeJSON && i < len(args)-1 {
			fmt.Println()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to analyze", failed, len(args))
	}
	return nil
}

func analyzeOne(ctx context.Context, engine *analysis.Engine, repo *history.Repository, path string) error {
	result, err := engine.AnalyzeFile(ctx, path)
	if err != nil {
		return err
	}

	report := result.Report()
	payload, err := encoding.MarshalJSON(report)
	if err != nil {
		return err
	}

	if repo != nil {
		run := history.NewRun(path)
		run.OverallScore = result.OverallScore
		run.QualityScore = report.Summary.CategoryScores[analysis.CategoryQuality]
		run.PresentationScore = report.Summary.CategoryScores[analysis.CategoryPresentation]
		run.AnalyzerCount = result.SuccessCount()
		run.ErrorCount = len(result.Errors)
		run.DurationMS = result.Duration.Milliseconds()
		run.Report = payload

		if err := repo.SaveRun(ctx, run); err != nil {
			fmt.Printf("warning: failed to record run: %v\n", err)
		}
	}

	if analyzeJSON {
		fmt.Println(string(payload))
		return nil
	}

	fmt.Print(output.RenderReport(report, engine.Config()))
	if analyzeFindings {
		fmt.Println()
		fmt.Print(output.RenderFindings(report))
	}
	return nil
}
