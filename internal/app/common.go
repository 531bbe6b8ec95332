package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
)

// dataDir resolves the run history directory: the --data-dir flag, the
// DATA_DIR environment variable, or ~/.notebook-analyzer.
func dataDir() (string, error) {
	if dataDirFlag != "" {
		return dataDirFlag, nil
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".notebook-analyzer"), nil
}

// openRepository opens the run history store and repository. The caller
// must close the returned store.
func openRepository() (*history.Repository, *history.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, nil, err
	}

	store, err := history.OpenFromEnv(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}

	repo, err := history.NewRepository(store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	return repo, store, nil
}

// loadAnalysisConfig builds the effective analysis configuration from the
// --config flag plus the environment.
func loadAnalysisConfig() (*analysis.Config, error) {
	return analysis.LoadConfig(configPath)
}
