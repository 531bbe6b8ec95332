package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/ratelimit"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(history.PostgresDSNEnv, "")

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.CacheTTL = time.Minute
	cfg.EnableSwagger = false

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return srv
}

func postAnalyze(t *testing.T, srv *Server, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "disabled", response["redis"])
	assert.Contains(t, response, "store")
	assert.Contains(t, response, "metrics")
}

func TestAnalyzeSourceSnippet(t *testing.T) {
	srv := newTestServer(t)

	source := "import pandas as pd\n\ndef load(path):\n    \"\"\"Load a CSV file.\"\"\"\n    return pd.read_csv(path)\n"
	w := postAnalyze(t, srv, map[string]interface{}{"source": source})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	summary := report["summary"].(map[string]interface{})
	score := summary["overall_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)

	results := report["results"].(map[string]interface{})
	assert.Contains(t, results, "quality")
	assert.Contains(t, results, "presentation")
}

func TestAnalyzeNotebookDocument(t *testing.T) {
	srv := newTestServer(t)

	nb := map[string]interface{}{
		"nbformat": 4,
		"cells": []map[string]interface{}{
			{"cell_type": "markdown", "source": "# Data loading"},
			{"cell_type": "code", "source": "import pandas as pd\ndf = pd.read_csv('data.csv')"},
		},
	}
	w := postAnalyze(t, srv, map[string]interface{}{
		"notebook": nb,
		"path":     "exploration.ipynb",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	metadata := report["metadata"].(map[string]interface{})
	assert.Equal(t, float64(2), metadata["total_cells"])
	assert.Equal(t, "exploration.ipynb", metadata["notebook_path"])
}

func TestAnalyzeValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "neither source nor notebook",
			body: map[string]interface{}{"path": "x.ipynb"},
		},
		{
			name: "both source and notebook",
			body: map[string]interface{}{
				"source":   "x = 1",
				"notebook": map[string]interface{}{"cells": []interface{}{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postAnalyze(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAnalyzeMalformedNotebook(t *testing.T) {
	srv := newTestServer(t)

	// Valid JSON, but not a notebook: no cells field.
	w := postAnalyze(t, srv, map[string]interface{}{
		"notebook": map[string]interface{}{"nbformat": 4},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParallelOverrideMatchesSequential(t *testing.T) {
	srv := newTestServer(t)

	source := "import numpy as np\n\ndef mean(xs):\n    return np.mean(xs)\n"

	seq := postAnalyze(t, srv, map[string]interface{}{"source": source, "parallel": false})
	require.Equal(t, http.StatusOK, seq.Code)

	// A different path defeats the response cache without changing the code
	// under analysis.
	par := postAnalyze(t, srv, map[string]interface{}{"source": source, "parallel": true, "path": "par.py"})
	require.Equal(t, http.StatusOK, par.Code)

	var seqReport, parReport map[string]interface{}
	require.NoError(t, json.Unmarshal(seq.Body.Bytes(), &seqReport))
	require.NoError(t, json.Unmarshal(par.Body.Bytes(), &parReport))

	seqSummary := seqReport["summary"].(map[string]interface{})
	parSummary := parReport["summary"].(map[string]interface{})
	assert.Equal(t, seqSummary["overall_score"], parSummary["overall_score"])
	assert.Equal(t, seqSummary["category_scores"], parSummary["category_scores"])
}

func TestRunHistoryRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := postAnalyze(t, srv, map[string]interface{}{"source": "x = 1\nprint(x)\n"})
	require.Equal(t, http.StatusOK, w.Code)
	runID := w.Header().Get("X-Run-ID")
	require.NotEmpty(t, runID)

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs/"+runID, nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var run map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, runID, run["id"])
	assert.Contains(t, run, "report")
	assert.Contains(t, run, "overall_score")
}

func TestGetRunNotFound(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs/no-such-run", nil)
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRuns(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := postAnalyze(t, srv, map[string]interface{}{
			"source": fmt.Sprintf("x = %d\n", i),
			"path":   fmt.Sprintf("nb-%d.py", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs?limit=2", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["count"])

	// Newest first.
	runs := response["runs"].([]interface{})
	first := runs[0].(map[string]interface{})
	assert.Equal(t, "nb-2.py", first["notebook_path"])
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t)

	for _, limit := range []string{"0", "-1", "201", "abc"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/runs?limit="+limit, nil)
		srv.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		w := postAnalyze(t, srv, map[string]interface{}{
			"source": fmt.Sprintf("y = %d\n", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["total_runs"])

	scores := response["scores"].(map[string]interface{})
	assert.Equal(t, float64(2), scores["count"])
}

func TestAnalyzeResponseIsCached(t *testing.T) {
	srv := newTestServer(t)

	body := map[string]interface{}{"source": "z = 42\n"}

	first := postAnalyze(t, srv, body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := postAnalyze(t, srv, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// The cached response skips the pipeline, so only one run is recorded.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	srv.Router().ServeHTTP(w, req)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["total_runs"])
}

func TestAnalyzeRateLimitEnforced(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv(history.PostgresDSNEnv, "")

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EnableSwagger = false
	cfg.RateLimit = ratelimit.Config{
		IPLimitPerMin:      60,
		AnalyzeLimitPerMin: 2,
		BurstMultiplier:    1,
		CleanupInterval:    time.Hour,
	}

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	for i := 0; i < 2; i++ {
		w := postAnalyze(t, srv, map[string]interface{}{"source": fmt.Sprintf("a = %d\n", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postAnalyze(t, srv, map[string]interface{}{"source": "a = 99\n"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Reads are budgeted separately and still pass.
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/runs", nil)
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ratelimit/status", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	limits := response["limits"].(map[string]interface{})
	assert.Contains(t, limits, "ip_per_minute")
	assert.Contains(t, limits, "analyze_per_minute")
}

func TestCacheStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/cache/stats", nil)
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response, "response_cache")
	assert.Contains(t, response, "run_cache")
	assert.Contains(t, response, "compression")
	assert.Contains(t, response, "json_encoder")
}
