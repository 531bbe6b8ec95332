package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/encoding"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/output"
)

var (
	historyLimit int
	historyStats bool
	historyJSON  bool

	historyCmd = &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded analysis runs and score statistics",
		Long: `List recent analysis runs, newest first. With a run ID, print that
run's stored report. With --stats, summarize the recent score history
with outlier-resistant statistics.`,
		Example: `  # Recent runs
  notebook-analyzer history

  # One run's full report
  notebook-analyzer history 4f7c2c1e-...

  # Score statistics
  notebook-analyzer history --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "summarize the score history")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit JSON instead of tables")
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo, store, err := openRepository()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	if len(args) == 1 {
		run, err := repo.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		if historyJSON {
			fmt.Println(string(run.Report))
			return nil
		}

		var report analysis.Report
		if err := encoding.UnmarshalJSON(run.Report, &report); err != nil {
			return fmt.Errorf("stored report for %s is unreadable: %w", run.ID, err)
		}
		fmt.Printf("Run %s (%s)\n\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Print(output.RenderReport(&report, nil))
		return nil
	}

	if historyStats {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}

		if historyJSON {
			payload, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		fmt.Print(output.RenderStats(stats))
		return nil
	}

	runs, err := repo.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		payload, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	fmt.Print(output.RenderRunTable(runs))
	return nil
}
