package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/output"
)

// watchDebounce coalesces the burst of write events editors emit on save.
const watchDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <file-or-dir> [file-or-dir...]",
	Short: "Re-analyze notebooks whenever they change",
	Long: `Watch notebook files or directories and re-run the analysis on every
save. Directories are watched for changes to any .ipynb or .py file
directly inside them.

Watching runs until interrupted.`,
	Example: `  # Watch one notebook
  notebook-analyzer watch exploration.ipynb

  # Watch a whole directory of notebooks
  notebook-analyzer watch notebooks/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return err
	}

	engine, err := analysis.NewEngine(cfg)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}

		// Editors replace files on save, so watching the directory is the
		// reliable way to keep seeing a single file.
		target := path
		if !info.IsDir() {
			if !isNotebookFile(path) {
				return fmt.Errorf("cannot watch %s: want .ipynb or .py", path)
			}
			target = filepath.Dir(path)
		}
		if err := watcher.Add(target); err != nil {
			return fmt.Errorf("cannot watch %s: %w", target, err)
		}
	}

	explicit := explicitFiles(args)

	fmt.Printf("Watching %s for changes. Press Ctrl+C to stop.\n", strings.Join(args, ", "))

	ctx := cmd.Context()
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isNotebookFile(event.Name) {
				continue
			}
			if len(explicit) > 0 && !explicit[filepath.Clean(event.Name)] {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("watch error: %v\n", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < watchDebounce {
					continue
				}
				delete(pending, path)

				fmt.Printf("\n--- %s (%s) ---\n", path, time.Now().Format("15:04:05"))
				result, err := engine.AnalyzeFile(ctx, path)
				if err != nil {
					fmt.Printf("analysis failed: %v\n", err)
					continue
				}
				fmt.Print(output.RenderReport(result.Report(), engine.Config()))
			}
		}
	}
}

// explicitFiles returns the cleaned set of file arguments. When only files
// were named, events for their siblings are filtered out; as soon as any
// directory is named, everything in scope is fair game.
func explicitFiles(args []string) map[string]bool {
	files := make(map[string]bool)
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return nil
		}
		files[filepath.Clean(path)] = true
	}
	return files
}

func isNotebookFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ipynb", ".py":
		return true
	}
	return false
}
