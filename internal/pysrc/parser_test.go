package pysrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstOfKind(root *Node, kind Kind) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if found == nil && n.Kind == kind {
			found = n
		}
		return found == nil
	})
	return found
}

func TestParse_FunctionsAndClasses(t *testing.T) {
	src := strings.Join([]string{
		"import pandas as pd",
		"",
		"",
		"def load_data(path):",
		"    \"\"\"Load the dataset.",
		"",
		"    Args:",
		"        path: source location.",
		"",
		"    Returns:",
		"        Parsed frame.",
		"    \"\"\"",
		"    df = pd.read_csv(path, sep=\",\")",
		"    return df",
		"",
		"",
		"class Model(Base):",
		"    \"\"\"Wraps the classifier.\"\"\"",
		"",
		"    def __init__(self, depth=3):",
		"        self.depth = depth",
		"",
		"    def fit(self, X, y):",
		"        return self",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	funcs := m.Functions()
	require.Len(t, funcs, 3)

	load := funcs[0]
	assert.Equal(t, "load_data", load.Name)
	assert.Equal(t, []string{"path"}, load.Params)
	assert.Equal(t, 4, load.Line)
	assert.Equal(t, 14, load.EndLine)

	doc := m.Docstring(load)
	require.NotNil(t, doc)
	assert.True(t, strings.HasPrefix(doc.Text, "Load the dataset."))
	assert.Contains(t, doc.Text, "Args:")
	assert.Contains(t, doc.Text, "Returns:")

	classes := m.Classes()
	require.Len(t, classes, 1)
	model := classes[0]
	assert.Equal(t, "Model", model.Name)
	assert.Equal(t, []string{"Base"}, model.Bases)
	require.NotNil(t, m.Docstring(model))

	methods := m.Methods(model)
	require.Len(t, methods, 2)
	assert.Equal(t, "__init__", methods[0].Name)
	assert.Equal(t, []string{"self", "depth"}, methods[0].Params)
	assert.Equal(t, "fit", methods[1].Name)
	assert.Equal(t, []string{"self", "X", "y"}, methods[1].Params)

	assign := firstOfKind(methods[0], KindAssignment)
	require.NotNil(t, assign)
	assert.Equal(t, "self.depth", assign.Name)
}

func TestParse_Decorators(t *testing.T) {
	src := strings.Join([]string{
		"@app.route(\"/items\", methods=[\"GET\"])",
		"@cached_property",
		"async def items(self):",
		"    return self._items",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	funcs := m.Functions()
	require.Len(t, funcs, 1)
	fn := funcs[0]
	assert.True(t, fn.Async)
	assert.Equal(t, []string{"app.route", "cached_property"}, fn.Decorators)
	assert.Equal(t, "items", fn.Name)
}

func TestParse_Imports(t *testing.T) {
	src := strings.Join([]string{
		"import os, sys",
		"import matplotlib.pyplot as plt",
		"from collections import defaultdict, OrderedDict",
		"from sklearn.ensemble import RandomForestClassifier as RFC",
		"from itertools import *",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	imports := m.Imports()
	require.Len(t, imports, 7)

	type binding struct{ source, local string }
	got := make([]binding, 0, len(imports))
	for _, imp := range imports {
		got = append(got, binding{imp.Name, imp.Text})
	}
	assert.Equal(t, []binding{
		{"os", "os"},
		{"sys", "sys"},
		{"matplotlib.pyplot", "plt"},
		{"collections.defaultdict", "defaultdict"},
		{"collections.OrderedDict", "OrderedDict"},
		{"sklearn.ensemble.RandomForestClassifier", "RFC"},
		{"itertools", "*"},
	}, got)
}

func TestParse_CallsAndKeywords(t *testing.T) {
	src := strings.Join([]string{
		"df = pd.read_csv(\"input.csv\", sep=\",\", header=0)",
		"joined = df.merge(other, how=\"left\").groupby(\"region\").sum()",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	calls := m.Calls()
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"pd.read_csv", "df.merge", "groupby", "sum"}, names)

	assert.Equal(t, []string{"sep", "header"}, calls[0].Keywords)
	assert.Equal(t, []string{"how"}, calls[1].Keywords)
	assert.Contains(t, calls[1].Text, "how=\"left\"")
}

func TestParse_ControlFlow(t *testing.T) {
	src := strings.Join([]string{
		"if x > 0 and y > 0:",
		"    result = \"both\"",
		"elif x > 0 or z:",
		"    result = \"one\"",
		"else:",
		"    result = \"none\"",
		"",
		"try:",
		"    risky()",
		"except ValueError:",
		"    recover()",
		"except KeyError:",
		"    pass",
		"finally:",
		"    cleanup()",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	cond := firstOfKind(m.Root, KindConditional)
	require.NotNil(t, cond)
	assert.Equal(t, 2, cond.Branches)
	assert.Equal(t, 2, cond.BoolOps)

	try := firstOfKind(m.Root, KindTry)
	require.NotNil(t, try)
	assert.Equal(t, 2, try.Branches)

	assigns := 0
	Walk(cond, func(n *Node) bool {
		if n.Kind == KindAssignment {
			assigns++
		}
		return true
	})
	assert.Equal(t, 3, assigns)
}

func TestParse_NestingDepth(t *testing.T) {
	src := strings.Join([]string{
		"def deep(x):",
		"    for i in range(x):",
		"        if i > 2:",
		"            while True:",
		"                break",
		"    return x",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	fn := m.Functions()[0]
	assert.Equal(t, 3, NestingDepth(fn))
	assert.Equal(t, 6, BodyLines(fn))
}

func TestParse_Comprehensions(t *testing.T) {
	src := strings.Join([]string{
		"squares = [x * x for x in range(10)]",
		"lookup = {k: v for k, v in pairs}",
		"names = {n for n in raw}",
		"total = sum(x for x in data)",
		"plain = (a + b) * c",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	comps := m.Comprehensions()
	require.Len(t, comps, 4)
	assert.Equal(t, "list", comps[0].Name)
	assert.Equal(t, "dict", comps[1].Name)
	assert.Equal(t, "set", comps[2].Name)
	assert.Equal(t, "generator", comps[3].Name)
	assert.Equal(t, "x * x for x in range(10)", comps[0].Text)
}

func TestParse_LambdasAndGlobals(t *testing.T) {
	src := strings.Join([]string{
		"key = lambda r: r[1]",
		"",
		"def bump():",
		"    global counter, total",
		"    counter += 1",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	lam := firstOfKind(m.Root, KindLambda)
	require.NotNil(t, lam)

	glob := firstOfKind(m.Root, KindGlobal)
	require.NotNil(t, glob)
	assert.Equal(t, []string{"counter", "total"}, glob.Keywords)

	aug := firstOfKind(m.Functions()[0], KindAssignment)
	require.NotNil(t, aug)
	assert.Equal(t, "counter", aug.Name)
}

func TestParse_Comments(t *testing.T) {
	src := strings.Join([]string{
		"import os  # stdlib only",
		"# prepare the data",
		"rows = os.listdir(\".\")",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	comments := m.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, "inline", comments[0].Name)
	assert.Equal(t, "stdlib only", comments[0].Text)
	assert.Equal(t, 1, comments[0].Line)
	assert.Equal(t, "standalone", comments[1].Name)
	assert.Equal(t, "prepare the data", comments[1].Text)
	assert.Equal(t, 2, comments[1].Line)
}

func TestParse_BracketContinuation(t *testing.T) {
	src := strings.Join([]string{
		"config = {",
		"    \"alpha\": 1,",
		"    \"beta\": 2,",
		"}",
		"print(config)",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	assign := firstOfKind(m.Root, KindAssignment)
	require.NotNil(t, assign)
	assert.Equal(t, "config", assign.Name)
	assert.Equal(t, 1, assign.Line)
	assert.Equal(t, 4, assign.EndLine)
	assert.Len(t, m.Lines, 5)
}

func TestParse_ModuleDocstring(t *testing.T) {
	src := strings.Join([]string{
		"\"\"\"Exploratory analysis of the sales data.\"\"\"",
		"import pandas as pd",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	doc := m.Docstring(m.Root)
	require.NotNil(t, doc)
	assert.Equal(t, "Exploratory analysis of the sales data.", doc.Text)

	// A string expression past the first statement is not a docstring.
	m2, err := Parse("x = 1\n\"note\"")
	require.NoError(t, err)
	assert.Nil(t, m2.Docstring(m2.Root))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		reason string
	}{
		{
			name:   "unbalanced closing bracket",
			src:    "x = )",
			line:   1,
			reason: "unbalanced closing bracket",
		},
		{
			name:   "unclosed bracket",
			src:    "x = (1, 2",
			line:   1,
			reason: "unclosed bracket",
		},
		{
			name:   "unterminated triple quote",
			src:    "s = \"\"\"abc\ndef",
			line:   1,
			reason: "unterminated triple-quoted string",
		},
		{
			name:   "unexpected indent",
			src:    "x = 1\n    y = 2",
			line:   2,
			reason: "unexpected indent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Contains(t, pe.Reason, tt.reason)
		})
	}
}

func TestWalk_SkipsChildrenOnFalse(t *testing.T) {
	src := strings.Join([]string{
		"def outer():",
		"    def inner():",
		"        return 1",
		"    return inner",
	}, "\n")

	m, err := Parse(src)
	require.NoError(t, err)

	var visited []Kind
	Walk(m.Root, func(n *Node) bool {
		visited = append(visited, n.Kind)
		return n.Kind != KindFunction
	})
	assert.Equal(t, []Kind{KindModule, KindFunction}, visited)
}
