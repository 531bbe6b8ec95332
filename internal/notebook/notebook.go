package notebook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
)

// CellKind partitions cells into the two kinds the engine distinguishes.
type CellKind string

const (
	CellCode          CellKind = "code"
	CellDocumentation CellKind = "documentation"
)

// Cell is one notebook cell in file order. Index is the cell's position in
// the file, counting every cell regardless of kind, starting at 0.
type Cell struct {
	Kind  CellKind `json:"kind"`
	Text  string   `json:"text"`
	Index int      `json:"index"`
}

// Metadata summarizes the notebook container. Markdown cells count as
// documentation; cell kinds the engine does not consume (raw cells) count
// toward TotalCells only.
type Metadata struct {
	TotalCells             int    `json:"total_cells"`
	CodeCellCount          int    `json:"code_cell_count"`
	DocumentationCellCount int    `json:"documentation_cell_count"`
	KernelName             string `json:"kernel_name,omitempty"`
	LanguageVersion        string `json:"language_version,omitempty"`
}

// Notebook is the parsed container handed to the engine.
type Notebook struct {
	Path     string
	Cells    []Cell
	Metadata Metadata
}

// CodeSources returns the text of every code cell in notebook order.
func (n *Notebook) CodeSources() []string {
	sources := make([]string, 0, n.Metadata.CodeCellCount)
	for _, cell := range n.Cells {
		if cell.Kind == CellCode {
			sources = append(sources, cell.Text)
		}
	}
	return sources
}

// sourceText absorbs nbformat's two source encodings: a plain string or an
// array of line strings that concatenate into one (lines keep their own \n).
type sourceText string

func (s *sourceText) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*s = sourceText(strings.Join(lines, ""))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = sourceText(str)
	return nil
}

type rawCell struct {
	CellType string     `json:"cell_type"`
	Source   sourceText `json:"source"`
}

type rawNotebook struct {
	Cells    []rawCell `json:"cells"`
	Metadata struct {
		KernelSpec struct {
			Name string `json:"name"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Version string `json:"version"`
		} `json:"language_info"`
	} `json:"metadata"`
	NBFormat int `json:"nbformat"`
}

// Read loads a notebook file. `.ipynb` files parse as nbformat JSON; `.py`
// files become a single synthetic code cell. Anything else is rejected.
func Read(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("failed to read notebook", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ipynb":
		nb, err := Parse(data)
		if err != nil {
			return nil, err
		}
		nb.Path = path
		return nb, nil
	case ".py":
		nb := FromSource(string(data))
		nb.Path = path
		return nb, nil
	default:
		return nil, apperrors.NewIOError("unsupported file type, want .ipynb or .py", path, nil)
	}
}

// Parse decodes nbformat 4 JSON. Container-level problems (not JSON, no
// cells field) are errors; cell-level oddities (unknown cell_type, empty
// source) are tolerated.
func Parse(data []byte) (*Notebook, error) {
	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewIOError("invalid notebook JSON", "", err)
	}
	if raw.Cells == nil {
		return nil, apperrors.NewIOError("notebook has no cells field", "", nil)
	}

	nb := &Notebook{
		Cells: make([]Cell, 0, len(raw.Cells)),
		Metadata: Metadata{
			TotalCells:      len(raw.Cells),
			KernelName:      raw.Metadata.KernelSpec.Name,
			LanguageVersion: raw.Metadata.LanguageInfo.Version,
		},
	}

	for i, cell := range raw.Cells {
		switch cell.CellType {
		case "code":
			nb.Cells = append(nb.Cells, Cell{Kind: CellCode, Text: string(cell.Source), Index: i})
			nb.Metadata.CodeCellCount++
		case "markdown":
			nb.Cells = append(nb.Cells, Cell{Kind: CellDocumentation, Text: string(cell.Source), Index: i})
			nb.Metadata.DocumentationCellCount++
		}
	}

	return nb, nil
}

// FromSource wraps a raw source snippet as a one-cell notebook.
func FromSource(source string) *Notebook {
	return &Notebook{
		Cells: []Cell{{Kind: CellCode, Text: source, Index: 0}},
		Metadata: Metadata{
			TotalCells:    1,
			CodeCellCount: 1,
		},
	}
}
