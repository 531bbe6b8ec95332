package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	dataDirFlag string

	// RootCmd is the root command for notebook-analyzer
	RootCmd = &cobra.Command{
		Use:   "notebook-analyzer",
		Short: "Score the code quality of Jupyter notebooks",
		Long: `notebook-analyzer runs a set of heuristic analyzers over the code cells
of a Jupyter notebook (or a plain Python script) and aggregates their
findings into a single 0-100 quality score.

Quality analyzers cover formatting, documentation, conciseness, structure,
data handling, reusability and advanced techniques; presentation analyzers
cover visualization types and formatting. Every run is recorded in a local
history so scores can be tracked over time.

Examples:
  # Analyze a notebook
  notebook-analyzer analyze exploration.ipynb

  # Analyze several files with full findings
  notebook-analyzer analyze --findings notebooks/*.ipynb

  # Re-analyze on every save
  notebook-analyzer watch exploration.ipynb

  # Recent runs and score statistics
  notebook-analyzer history --stats

  # Start the HTTP API
  notebook-analyzer serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("notebook-analyzer: notebook code quality scoring")
			fmt.Println()
			fmt.Println("Run 'notebook-analyzer analyze <file>' to score a notebook.")
			fmt.Println("Run 'notebook-analyzer --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "analysis configuration file (JSON)")
	RootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "run history directory (default: ~/.notebook-analyzer)")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
