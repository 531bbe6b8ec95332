// Package output renders analysis reports, run listings and score
// statistics for the terminal. Tables are plain ASCII with ANSI colors on
// interactive terminals; progress indicators stay silent when output is
// piped.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// Respects the NO_COLOR convention and requires stdout to be a terminal.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// levelColor maps a quality threshold label onto a display color.
func levelColor(level string) string {
	switch level {
	case "excellent", "good":
		return colorGreen
	case "fair":
		return colorYellow
	default:
		return colorRed
	}
}

// RenderReport renders one analysis report. cfg supplies the threshold
// table that turns the numeric score into a label; a nil cfg uses defaults.
func RenderReport(report *analysis.Report, cfg *analysis.Config) string {
	if cfg == nil {
		cfg = analysis.DefaultConfig()
	}

	var sb strings.Builder

	if path, ok := report.Metadata["notebook_path"].(string); ok && path != "" {
		sb.WriteString(fmt.Sprintf("Notebook: %s\n", path))
	}

	level, err := cfg.ThresholdLevel("code_quality", report.Summary.OverallScore)
	if err != nil {
		level = ""
	}
	scoreLine := fmt.Sprintf("Overall score: %.1f/100", report.Summary.OverallScore)
	if level != "" {
		scoreLine += fmt.Sprintf(" (%s)", colorize(levelColor(level), level))
	}
	sb.WriteString(scoreLine)
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("%-22s %-14s %7s\n", "Analyzer", "Category", "Score"))
	sb.WriteString(strings.Repeat("-", 46))
	sb.WriteString("\n")

	for _, category := range analysis.Categories() {
		names := make([]string, 0, len(report.Results[category]))
		for name := range report.Results[category] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			res := report.Results[category][name]
			sb.WriteString(fmt.Sprintf("%-22s %-14s %7.1f\n",
				truncate(name, 22), string(category), res.Score))
		}
	}

	sb.WriteString("\n")
	for _, category := range analysis.Categories() {
		sb.WriteString(fmt.Sprintf("%-22s %21.1f\n",
			fmt.Sprintf("%s score:", category), report.Summary.CategoryScores[category]))
	}

	if len(report.Summary.Errors) > 0 {
		sb.WriteString("\nFailed analyzers:\n")
		for _, msg := range report.Summary.Errors {
			sb.WriteString(fmt.Sprintf("  %s\n", colorize(colorRed, msg)))
		}
	}

	return sb.String()
}

// RenderFindings lists every finding and suggestion grouped by analyzer.
// Analyzers with nothing to say are skipped.
func RenderFindings(report *analysis.Report) string {
	var sb strings.Builder

	for _, category := range analysis.Categories() {
		names := make([]string, 0, len(report.Results[category]))
		for name := range report.Results[category] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			res := report.Results[category][name]
			if len(res.Findings) == 0 && len(res.Suggestions) == 0 {
				continue
			}

			sb.WriteString(fmt.Sprintf("%s/%s:\n", category, name))
			for _, f := range res.Findings {
				if f.Line > 0 {
					sb.WriteString(fmt.Sprintf("  line %d: %s\n", f.Line, f.Message))
				} else {
					sb.WriteString(fmt.Sprintf("  %s\n", f.Message))
				}
			}
			for _, s := range res.Suggestions {
				sb.WriteString(fmt.Sprintf("  %s %s\n", colorize(colorGray, "suggestion:"), s))
			}
		}
	}

	if sb.Len() == 0 {
		return "No findings.\n"
	}
	return sb.String()
}

// RenderRunTable renders a run history listing, newest first as delivered
// by the repository.
func RenderRunTable(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-36s %-24s %7s %7s %6s\n",
		"Run ID", "Notebook", "Score", "Errors", "ms"))
	sb.WriteString(strings.Repeat("-", 86))
	sb.WriteString("\n")

	for _, run := range runs {
		path := run.NotebookPath
		if path == "" {
			path = "(snippet)"
		}
		sb.WriteString(fmt.Sprintf("%-36s %-24s %7.1f %7d %6d\n",
			run.ID, truncate(path, 24), run.OverallScore, run.ErrorCount, run.DurationMS))
	}

	return sb.String()
}

// RenderStats renders the score statistics block.
func RenderStats(stats *history.Stats) string {
	if stats == nil || stats.Count == 0 {
		return "No score history.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Runs:   %d\n", stats.Count))
	sb.WriteString(fmt.Sprintf("Latest: %.1f\n", stats.Latest))
	sb.WriteString(fmt.Sprintf("Best:   %.1f\n", stats.Best))
	sb.WriteString(fmt.Sprintf("Worst:  %.1f\n", stats.Worst))
	sb.WriteString(fmt.Sprintf("Median: %.1f\n", stats.Median))
	sb.WriteString(fmt.Sprintf("Spread: %.1f\n", stats.Spread))
	sb.WriteString(fmt.Sprintf("Trend:  %.1f\n", stats.Trend))

	if len(stats.Outliers) > 0 {
		sb.WriteString(fmt.Sprintf("Unusual runs: %s\n", strings.Join(stats.Outliers, ", ")))
	}

	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
