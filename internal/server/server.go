package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/analysis"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/cache"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/encoding"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/errors"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/history"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/middleware"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/monitoring"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/ratelimit"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/resilience"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/security"
)

// analyzePath is the one compute-heavy endpoint; the response cache and the
// tighter analyze rate budget both key off it.
const analyzePath = "/api/v1/analyze"

// Config holds everything the HTTP server needs to come up.
type Config struct {
	Addr    string
	Version string

	// DataDir is where the SQLite history database lives unless a
	// Postgres DSN is configured through the environment.
	DataDir string

	// ConfigPath is an optional analysis configuration file overlaying
	// the stock weight tables.
	ConfigPath string

	CacheTTL  time.Duration
	RateLimit ratelimit.Config
	Security  security.SecurityConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EnableSwagger bool
}

// DefaultConfig returns the server defaults used when no environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		Version:       "1.0.0",
		DataDir:       "./data",
		CacheTTL:      15 * time.Minute,
		RateLimit:     ratelimit.DefaultConfig(),
		Security:      security.DefaultSecurityConfig(),
		EnableSwagger: true,
	}
}

// Server is the assembled HTTP API: the analysis engines, the run-history
// repository and the middleware stack behind one gin router.
type Server struct {
	cfg Config

	// One engine per execution mode so a per-request parallel override
	// never mutates shared configuration.
	seqEngine       *analysis.Engine
	parEngine       *analysis.Engine
	defaultParallel bool

	store *history.Store
	repo  *history.Repository

	cache      *cache.Cache
	limiter    *ratelimit.RateLimiter
	redis      *ratelimit.RedisClient
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger
	secure     *security.SecurityMiddleware
	compressor *middleware.CompressionMiddleware
	encoder    *encoding.ReportEncoder

	router *gin.Engine
}

// New assembles a server from cfg. The history store is opened with retries
// so a briefly unavailable Postgres at boot does not kill the process.
func New(cfg Config) (*Server, error) {
	analysisCfg, err := analysis.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	seqCfg := *analysisCfg
	seqCfg.Parallel = false
	seqEngine, err := analysis.NewEngine(&seqCfg)
	if err != nil {
		return nil, err
	}

	parCfg := *analysisCfg
	parCfg.Parallel = true
	parEngine, err := analysis.NewEngine(&parCfg)
	if err != nil {
		return nil, err
	}

	var store *history.Store
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableErrors = func(error) bool { return true }
	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = resilience.RetryWithConfig(openCtx, retryCfg, func() error {
		var openErr error
		store, openErr = history.OpenFromEnv(cfg.DataDir)
		return openErr
	})
	if err != nil {
		return nil, err
	}

	repo, err := history.NewRepository(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	redisClient, redisErr := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisErr != nil {
		slog.Warn("Redis unavailable at startup, continuing with in-memory rate limiting", "error", redisErr)
	}

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLogger()

	s := &Server{
		cfg:             cfg,
		seqEngine:       seqEngine,
		parEngine:       parEngine,
		defaultParallel: analysisCfg.Parallel,
		store:           store,
		repo:            repo,
		cache:           cache.NewCache(cfg.CacheTTL, analysisCfg.Fingerprint()),
		limiter:         ratelimit.NewRateLimiter(redisClient, cfg.RateLimit, metrics),
		redis:           redisClient,
		metrics:         metrics,
		logger:          logger,
		secure:          security.NewSecurityMiddleware(cfg.Security),
		compressor:      middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		encoder:         encoding.NewReportEncoder(),
	}
	s.router = s.buildRouter()

	return s, nil
}

// engineFor picks the engine for one request. A request-level override wins
// over the configured default.
func (s *Server) engineFor(override *bool) *analysis.Engine {
	parallel := s.defaultParallel
	if override != nil {
		parallel = *override
	}
	if parallel {
		return s.parEngine
	}
	return s.seqEngine
}

// Router exposes the assembled gin router, mainly for httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()

	if err := r.SetTrustedProxies(s.cfg.Security.TrustedProxies); err != nil {
		slog.Warn("failed to set trusted proxies", "error", err)
	}

	if s.cfg.Security.EnableCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.Security.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Run-ID", "X-RateLimit-Remaining"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, int64(s.cfg.Security.MaxNotebookBytes)))

	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	r.Use(s.secure.SecurityHeaders)
	r.Use(s.secure.RequestTimeout)
	r.Use(s.secure.ValidateContentType)

	r.Use(s.compressor.Handler())

	r.Use(s.limiter.IPRateLimitMiddleware())
	r.Use(s.limiter.AnalyzeRateLimitMiddleware(analyzePath))

	// The cache sits closest to the handler: a hit skips the analyzer
	// pipeline but still pays the rate budget.
	r.Use(s.cache.Middleware(analyzePath, s.metrics))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/cache/stats", s.handleCacheStats)
	r.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())

	api := r.Group("/api/v1")
	{
		api.POST("/analyze", s.secure.ValidateAnalyzeRequest, s.handleAnalyze)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/stats", s.handleStats)
	}

	admin := r.Group("/admin")
	{
		admin.GET("/ratelimit", s.limiter.HandleAdminRateLimits())
		admin.POST("/ratelimit/invalidate/:ip", s.limiter.HandleAdminInvalidateIP())
	}

	if s.cfg.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", s.cfg.Addr, "version", s.cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.Close()
	slog.Info("Server exited")
	return nil
}

// Close releases the server's long-lived resources.
func (s *Server) Close() {
	s.cache.Close()
	s.limiter.Close()
	errors.SafeClose(s.redis, "redis client")
	errors.SafeClose(s.store, "history store")
}

// Hostname is used in the health payload; failures fall back to empty.
func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
