package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/types"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxSourceBytes   int           `json:"max_source_bytes"`
	MaxNotebookBytes int           `json:"max_notebook_bytes"`
	EnableCORS       bool          `json:"enable_cors"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	TrustedProxies   []string      `json:"trusted_proxies"`
	RequestTimeout   time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults. Notebook payloads carry
// whole documents with outputs, so they get a far larger budget than raw
// snippets.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxSourceBytes:   1 << 20,  // 1 MiB of raw source
		MaxNotebookBytes: 10 << 20, // 10 MiB of .ipynb JSON
		EnableCORS:       true,
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies:   []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout:   30 * time.Second,
	}
}

// SecurityMiddleware provides request validation and hardening middleware
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// Config exposes the active security configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// ValidateSource checks a raw source snippet. Code is analyzed, never
// executed or rendered, so the checks are structural: size, encoding and
// null bytes.
func (sm *SecurityMiddleware) ValidateSource(source string) error {
	if len(source) > sm.config.MaxSourceBytes {
		return fmt.Errorf("source exceeds maximum size of %d bytes", sm.config.MaxSourceBytes)
	}

	if strings.Contains(source, "\x00") {
		return fmt.Errorf("source contains null bytes")
	}

	if !utf8.ValidString(source) {
		return fmt.Errorf("source contains invalid UTF-8 encoding")
	}

	return nil
}

// ValidateNotebookPayload checks a raw .ipynb document
func (sm *SecurityMiddleware) ValidateNotebookPayload(payload []byte) error {
	if len(payload) > sm.config.MaxNotebookBytes {
		return fmt.Errorf("notebook exceeds maximum size of %d bytes", sm.config.MaxNotebookBytes)
	}

	if !utf8.Valid(payload) {
		return fmt.Errorf("notebook contains invalid UTF-8 encoding")
	}

	return nil
}

// ValidateAnalyzeRequest binds and validates the analyze endpoint request.
// The validated request is stored under "analyze_request" for the handler.
func (sm *SecurityMiddleware) ValidateAnalyzeRequest(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid JSON format",
		})
		c.Abort()
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		c.Abort()
		return
	}

	if req.Source != "" {
		if err := sm.ValidateSource(req.Source); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("source validation failed: %v", err),
			})
			c.Abort()
			return
		}
	}

	if len(req.Notebook) > 0 {
		if err := sm.ValidateNotebookPayload(req.Notebook); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("notebook validation failed: %v", err),
			})
			c.Abort()
			return
		}
	}

	c.Set("analyze_request", &req)
	c.Next()
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	// Prevent MIME type sniffing
	c.Header("X-Content-Type-Options", "nosniff")

	// Prevent clickjacking
	c.Header("X-Frame-Options", "DENY")

	// XSS protection
	c.Header("X-XSS-Protection", "1; mode=block")

	// HSTS (HTTP Strict Transport Security) - only over TLS
	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// The API serves JSON only; lock everything down
	c.Header("Content-Security-Policy", "default-src 'self'")

	// Referrer Policy
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

	c.Header("Permissions-Policy", "camera=(), microphone=()")

	c.Next()
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
	}

	if contentType != "" {
		found := false
		for _, allowed := range allowedTypes {
			if strings.Contains(strings.ToLower(contentType), allowed) {
				found = true
				break
			}
		}

		if !found {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			c.Abort()
			return
		}
	}

	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)

	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// RequestLogging provides request logging with latency
func (sm *SecurityMiddleware) RequestLogging(c *gin.Context) {
	start := time.Now()
	path := c.Request.URL.Path
	raw := c.Request.URL.RawQuery

	c.Next()

	latency := time.Since(start)
	statusCode := c.Writer.Status()
	clientIP := c.ClientIP()
	method := c.Request.Method

	if raw != "" {
		path = path + "?" + raw
	}

	if statusCode >= 400 {
		slog.Warn("request failed",
			"method", method, "path", path, "status", statusCode,
			"latency_ms", latency.Milliseconds(), "ip", clientIP)
	} else if !strings.Contains(path, "/health") {
		slog.Debug("request",
			"method", method, "path", path, "status", statusCode,
			"latency_ms", latency.Milliseconds(), "ip", clientIP)
	}
}

