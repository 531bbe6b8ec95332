package analysis

import (
	"strings"
)

// Preprocessor cleans raw cell sources before parsing. Jupyter line magics
// and shell escapes are not Python; without this pass every notebook using
// %matplotlib or !pip would surface a parse failure in all analyzers.
type Preprocessor struct {
	minLines    int
	stripMagics bool
	stripShell  bool
}

// NewPreprocessor derives the cleaning rules from cfg.
func NewPreprocessor(cfg *Config) *Preprocessor {
	return &Preprocessor{
		minLines:    cfg.MinCodeLines(),
		stripMagics: cfg.StripMagicCommands(),
		stripShell:  cfg.StripSystemCommands(),
	}
}

// CleanSource normalizes a single cell source: line endings become \n, magic
// and shell escape lines are dropped per configuration, and trailing blank
// lines are trimmed.
func (p *Preprocessor) CleanSource(source string) string {
	source = normalizeNewlines(source)

	kept := make([]string, 0, strings.Count(source, "\n")+1)
	for _, line := range strings.Split(source, "\n") {
		if p.dropLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}

// JoinSources cleans every source and joins the survivors with a blank line.
// Cells left with fewer non-blank lines than the configured minimum are
// dropped entirely.
func (p *Preprocessor) JoinSources(sources []string) string {
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		cleaned := p.CleanSource(source)
		if codeLineCount(cleaned) < p.minLines {
			continue
		}
		parts = append(parts, cleaned)
	}
	return strings.Join(parts, "\n\n")
}

func (p *Preprocessor) dropLine(line string) bool {
	head := strings.TrimLeft(line, " \t")
	if p.stripMagics && strings.HasPrefix(head, "%") {
		return true
	}
	if p.stripShell && strings.HasPrefix(head, "!") {
		return true
	}
	return false
}

func codeLineCount(source string) int {
	if source == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
