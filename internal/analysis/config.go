package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"runtime"
	"sort"
	"strconv"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

const weightTolerance = 1e-6

// Config carries the weight tables, thresholds and execution settings of one
// engine instance. A Config is validated once at load time; a running
// analysis never re-checks it.
//
// The two Ignore* flags are pointers so a config file can switch them off;
// absent means the default, which is to strip.
type Config struct {
	CategoryWeights      map[Category]float64          `json:"score_weights"`
	QualityWeights       map[string]float64            `json:"quality_weights"`
	PresentationWeights  map[string]float64            `json:"presentation_weights"`
	SubMetricWeights     map[string]map[string]float64 `json:"sub_metric_weights,omitempty"`
	Thresholds           map[string]map[string]float64 `json:"thresholds"`
	MinCodeLength        int                           `json:"min_code_length,omitempty"`
	IgnoreMagicCommands  *bool                         `json:"ignore_magic_commands,omitempty"`
	IgnoreSystemCommands *bool                         `json:"ignore_system_commands,omitempty"`
	Parallel             bool                          `json:"parallel"`
	Workers              int                           `json:"workers"`
}

// DefaultConfig returns the stock weight tables and thresholds.
func DefaultConfig() *Config {
	return &Config{
		CategoryWeights: map[Category]float64{
			CategoryQuality:      0.6,
			CategoryPresentation: 0.4,
		},
		QualityWeights: map[string]float64{
			"formatting":          0.15,
			"documentation":       0.15,
			"conciseness":         0.15,
			"structure":           0.15,
			"data_merge":          0.15,
			"reusability":         0.15,
			"advanced_techniques": 0.10,
		},
		PresentationWeights: map[string]float64{
			"viz_formatting": 0.5,
			"viz_types":      0.5,
		},
		Thresholds: map[string]map[string]float64{
			"code_quality": {
				"excellent": 90,
				"good":      75,
				"fair":      60,
				"poor":      40,
			},
			"complexity": {
				"high":   80,
				"medium": 50,
				"low":    20,
			},
		},
		Parallel: false,
		Workers:  runtime.NumCPU(),
	}
}

// LoadConfig builds the effective configuration: defaults, then the optional
// JSON file at path, then environment overrides. The result is validated;
// a malformed configuration fails here and never inside a run.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("cannot read config file %s", path), err)
		}
		var file Config
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("config file %s is not valid JSON", path), err)
		}
		cfg.merge(&file)
	}

	if v := os.Getenv("NOTEBOOK_ANALYZER_PARALLEL"); v != "" {
		parallel, err := strconv.ParseBool(v)
		if err != nil {
			return nil, apperrors.NewConfigurationError("NOTEBOOK_ANALYZER_PARALLEL must be a boolean", err)
		}
		cfg.Parallel = parallel
	}
	if v := os.Getenv("NOTEBOOK_ANALYZER_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperrors.NewConfigurationError("NOTEBOOK_ANALYZER_WORKERS must be an integer", err)
		}
		cfg.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the non-empty parts of other onto c. Weight tables replace
// as whole groups, never key by key, so a file cannot half-edit a group past
// validation.
func (c *Config) merge(other *Config) {
	if len(other.CategoryWeights) > 0 {
		c.CategoryWeights = other.CategoryWeights
	}
	if len(other.QualityWeights) > 0 {
		c.QualityWeights = other.QualityWeights
	}
	if len(other.PresentationWeights) > 0 {
		c.PresentationWeights = other.PresentationWeights
	}
	if len(other.SubMetricWeights) > 0 {
		c.SubMetricWeights = other.SubMetricWeights
	}
	if len(other.Thresholds) > 0 {
		c.Thresholds = other.Thresholds
	}
	if other.MinCodeLength != 0 {
		c.MinCodeLength = other.MinCodeLength
	}
	if other.IgnoreMagicCommands != nil {
		c.IgnoreMagicCommands = other.IgnoreMagicCommands
	}
	if other.IgnoreSystemCommands != nil {
		c.IgnoreSystemCommands = other.IgnoreSystemCommands
	}
	if other.Workers != 0 {
		c.Workers = other.Workers
	}
	if other.Parallel {
		c.Parallel = true
	}
}

// Validate checks every weight group and threshold table. Weight groups must
// sum to 1.0 within 1e-6; they are never silently normalized.
func (c *Config) Validate() error {
	if err := validWeightGroup("category weights", categoryWeightValues(c.CategoryWeights)); err != nil {
		return err
	}
	if _, ok := c.CategoryWeights[CategoryQuality]; !ok {
		return apperrors.NewConfigurationError("category weights must include quality", nil)
	}
	if _, ok := c.CategoryWeights[CategoryPresentation]; !ok {
		return apperrors.NewConfigurationError("category weights must include presentation", nil)
	}
	if err := validWeightGroup("quality weights", c.QualityWeights); err != nil {
		return err
	}
	if err := validWeightGroup("presentation weights", c.PresentationWeights); err != nil {
		return err
	}
	for analyzer, group := range c.SubMetricWeights {
		if err := validWeightGroup(fmt.Sprintf("%s sub-metric weights", analyzer), group); err != nil {
			return err
		}
	}

	for category, levels := range c.Thresholds {
		if len(levels) == 0 {
			return apperrors.NewConfigurationError(fmt.Sprintf("threshold category %s is empty", category), nil)
		}
		type lv struct {
			name  string
			value float64
		}
		ordered := make([]lv, 0, len(levels))
		for name, value := range levels {
			ordered = append(ordered, lv{name, value})
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].value > ordered[j].value })
		for i := 1; i < len(ordered); i++ {
			if ordered[i].value > ordered[i-1].value {
				return apperrors.NewConfigurationError(
					fmt.Sprintf("threshold %s/%s (%.1f) is greater than the level above it", category, ordered[i].name, ordered[i].value), nil)
			}
		}
	}

	if c.MinCodeLength < 0 {
		return apperrors.NewConfigurationError("min_code_length must not be negative", nil)
	}
	if c.Workers < 0 {
		return apperrors.NewConfigurationError("workers must not be negative", nil)
	}
	return nil
}

// MinCodeLines is the smallest number of non-blank lines a cleaned cell must
// keep to be analyzed; cells below it are dropped. Zero means the default of
// one line.
func (c *Config) MinCodeLines() int {
	if c.MinCodeLength > 0 {
		return c.MinCodeLength
	}
	return 1
}

// StripMagicCommands reports whether Jupyter magic lines are removed before
// parsing. Defaults to true.
func (c *Config) StripMagicCommands() bool {
	return c.IgnoreMagicCommands == nil || *c.IgnoreMagicCommands
}

// StripSystemCommands reports whether shell escape lines are removed before
// parsing. Defaults to true.
func (c *Config) StripSystemCommands() bool {
	return c.IgnoreSystemCommands == nil || *c.IgnoreSystemCommands
}

// ThresholdLevel maps value onto the named threshold table, returning the
// highest level whose threshold the value reaches, or the lowest level when
// it reaches none.
func (c *Config) ThresholdLevel(category string, value float64) (string, error) {
	levels, ok := c.Thresholds[category]
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown threshold category %q", category))
	}

	type lv struct {
		name  string
		value float64
	}
	ordered := make([]lv, 0, len(levels))
	for name, v := range levels {
		ordered = append(ordered, lv{name, v})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].value > ordered[j].value })

	for _, l := range ordered {
		if value >= l.value {
			return l.name, nil
		}
	}
	return ordered[len(ordered)-1].name, nil
}

// Fingerprint digests the settings that shape a report: weight tables,
// thresholds and preprocessing flags. Two configs with equal fingerprints
// produce byte-identical reports for the same input; execution settings
// (parallel, workers) are excluded because they never change the output.
func (c *Config) Fingerprint() string {
	payload, err := json.Marshal(map[string]interface{}{
		"score_weights":        categoryWeightValues(c.CategoryWeights),
		"quality_weights":      c.QualityWeights,
		"presentation_weights": c.PresentationWeights,
		"sub_metric_weights":   c.SubMetricWeights,
		"thresholds":           c.Thresholds,
		"min_code_lines":       c.MinCodeLines(),
		"strip_magic":          c.StripMagicCommands(),
		"strip_system":         c.StripSystemCommands(),
	})
	if err != nil {
		return "unversioned"
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

// WorkerCount resolves the effective pool size; 0 means one worker per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

func validWeightGroup(name string, weights map[string]float64) error {
	if len(weights) == 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("%s must not be empty", name), nil)
	}
	sum := 0.0
	for key, w := range weights {
		if w < 0 {
			return apperrors.NewConfigurationError(fmt.Sprintf("%s: %s is negative", name, key), nil)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return apperrors.NewConfigurationError(fmt.Sprintf("%s sum to %.6f, want 1.0", name, sum), nil)
	}
	return nil
}

func categoryWeightValues(weights map[Category]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for c, w := range weights {
		out[string(c)] = w
	}
	return out
}