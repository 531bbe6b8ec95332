package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/notebook"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/types"
)

// handleAnalyze runs the analyzer pipeline over the validated request payload
// and returns the report document. The run is persisted to history; a storage
// failure is logged but never fails the response the client already earned.
func (s *Server) handleAnalyze(c *gin.Context) {
	req := c.MustGet("analyze_request").(*types.AnalyzeRequest)

	var nb *notebook.Notebook
	if len(req.Notebook) > 0 {
		parsed, err := notebook.Parse(req.Notebook)
		if err != nil {
			s.metrics.IncrementParseFailure()
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		nb = parsed
	} else {
		nb = notebook.FromSource(req.Source)
	}
	if req.Path != "" {
		nb.Path = req.Path
	}

	engine := s.engineFor(req.Parallel)
	result, err := engine.AnalyzeNotebook(c.Request.Context(), nb)
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	report := result.Report()
	payload, err := s.encoder.Marshal(report)
	if err != nil {
		appErr := errors.NewInternalError("failed to encode analysis report", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	s.metrics.IncrementAnalyzeRun()
	s.metrics.AddAnalyzerFailures(len(result.Errors))
	s.metrics.RecordScore(result.OverallScore)

	for _, msg := range result.Errors {
		category, analyzer := splitFailure(msg)
		s.logger.AnalyzerFailureLogger(nb.Path, analyzer, category, msg)
	}

	run := history.NewRun(nb.Path)
	run.OverallScore = result.OverallScore
	run.QualityScore = report.Summary.CategoryScores["quality"]
	run.PresentationScore = report.Summary.CategoryScores["presentation"]
	run.AnalyzerCount = result.SuccessCount()
	run.ErrorCount = len(result.Errors)
	run.DurationMS = result.Duration.Milliseconds()
	run.Report = payload

	if err := s.repo.SaveRun(c.Request.Context(), run); err != nil {
		s.logger.APIErrorLogger(err, c.Request.Method, c.Request.URL.Path, c.ClientIP(), http.StatusOK)
	}

	s.logger.AnalysisLogger(nb.Path, result.OverallScore,
		result.SuccessCount(), len(result.Errors), result.Duration, false)

	c.Header("X-Run-ID", run.ID)
	c.Data(http.StatusOK, "application/json", payload)
}

// splitFailure pulls the category and analyzer out of a run error message of
// the form "Error in category/name: detail". Unparseable messages come back
// empty rather than wrong.
func splitFailure(msg string) (category, analyzer string) {
	rest, ok := strings.CutPrefix(msg, "Error in ")
	if !ok {
		return "", ""
	}
	head, _, ok := strings.Cut(rest, ":")
	if !ok {
		return "", ""
	}
	category, analyzer, ok = strings.Cut(head, "/")
	if !ok {
		return "", ""
	}
	return category, analyzer
}

// handleListRuns returns recent runs, newest first, without report bodies.
func (s *Server) handleListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}

	runs, err := s.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run including its full report document.
func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.repo.GetRun(c.Request.Context(), id)
	if err == history.ErrRunNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": id})
		return
	}
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleStats summarizes the recent score history.
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.repo.Stats(c.Request.Context())
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	total, err := s.repo.Count(c.Request.Context())
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores":     stats,
		"total_runs": total,
	})
}

// handleHealth reports liveness plus the state of the backing services.
func (s *Server) handleHealth(c *gin.Context) {
	redisStatus := "disabled"
	if s.redis.IsEnabled() {
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "unhealthy"
		} else {
			redisStatus = "ok"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   s.cfg.Version,
		"hostname":  hostname(),
		"store":     s.store.PoolStats(),
		"redis":     redisStatus,
		"metrics":   s.metrics.GetStats(),
	})
}

// handleMetrics exposes the full metrics snapshot.
func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}

// handleCacheStats aggregates the stats of every caching and pooling layer.
func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"response_cache": s.cache.Stats(),
		"run_cache":      s.repo.CacheStats(),
		"compression":    s.compressor.GetStats(),
		"json_encoder":   s.encoder.GetStats(),
	})
}
