package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()
	limiter := NewRateLimiter(NewDisabledRedisClient(), config, monitoring.NewMetrics())
	t.Cleanup(limiter.Close)
	return limiter
}

func TestRateLimiterFallbackMode(t *testing.T) {
	config := Config{
		IPLimitPerMin:      10,
		AnalyzeLimitPerMin: 5,
		BurstMultiplier:    1,
		CleanupInterval:    time.Hour,
	}
	limiter := newFallbackLimiter(t, config)

	ctx := context.Background()
	key := "test:ip:10.0.0.1"
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	// First 5 requests should be allowed
	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "Request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	// 6th request should be blocked
	result, err := limiter.Allow(ctx, key, rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestRateLimiterBurstCapacity(t *testing.T) {
	config := Config{
		IPLimitPerMin:      10,
		AnalyzeLimitPerMin: 5,
		BurstMultiplier:    2,
		CleanupInterval:    time.Hour,
	}
	limiter := newFallbackLimiter(t, config)

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	// With burst multiplier of 2, roughly 10 requests pass before blocking
	allowedCount := 0
	for i := 0; i < 15; i++ {
		result, err := limiter.Allow(ctx, "test:burst", rateLimit)
		require.NoError(t, err)
		if result.Allowed {
			allowedCount++
		}
	}

	assert.GreaterOrEqual(t, allowedCount, 5, "Should allow at least limit amount")
	assert.LessOrEqual(t, allowedCount, 11, "Should not exceed burst + small margin")
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	config := DefaultConfig()
	config.BurstMultiplier = 1
	limiter := newFallbackLimiter(t, config)

	ctx := context.Background()
	rateLimit := Rate{Limit: 3, Period: time.Minute}

	// Different keys have independent rate limits
	keys := []string{"ip:1", "ip:2", "ip:3"}

	for _, key := range keys {
		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, key, rateLimit)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "Key %s request %d should be allowed", key, i+1)
		}

		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "Key %s 4th request should be blocked", key)
	}
}

func TestAnalyzeBudgetTighterThanIP(t *testing.T) {
	config := Config{
		IPLimitPerMin:      60,
		AnalyzeLimitPerMin: 2,
		BurstMultiplier:    1,
		CleanupInterval:    time.Hour,
	}
	limiter := newFallbackLimiter(t, config)

	ctx := context.Background()
	ip := "10.0.0.9"

	for i := 0; i < 2; i++ {
		result, err := limiter.AllowAnalyze(ctx, ip)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.AllowAnalyze(ctx, ip)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "third analyze should be blocked")

	// Plain requests from the same IP still pass
	result, err = limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterStats(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 3; i++ {
		_, _ = limiter.Allow(ctx, "test:stats", rateLimit)
	}

	stats := limiter.GetStats()
	assert.NotNil(t, stats)
	assert.False(t, stats["redis_enabled"].(bool))
	assert.True(t, stats["fallback_enabled"].(bool))

	statsConfig := stats["config"].(map[string]interface{})
	assert.Equal(t, 60, statsConfig["ip_limit_per_min"])
	assert.Equal(t, 10, statsConfig["analyze_limit_per_min"])
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	// Create enough limiters to trip the cleanup threshold
	for i := 0; i < 1500; i++ {
		_, _ = limiter.Allow(ctx, fmt.Sprintf("test:cleanup:%d", i), rateLimit)
	}

	limiter.cleanup()

	stats := limiter.GetStats()
	fallbackCount := stats["fallback_limiters"].(int)
	assert.Less(t, fallbackCount, 1500, "Cleanup should have reduced limiter count")
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 100, Period: time.Second}

	done := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				_, err := limiter.Allow(ctx, "test:concurrent", rateLimit)
				assert.NoError(t, err)
			}
			done <- true
		}()
	}

	for i := 0; i < 50; i++ {
		<-done
	}
}

func TestRateLimiterContextCancellation(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Should still work with cancelled context in fallback mode
	result, err := limiter.Allow(ctx, "test:cancelled", Rate{Limit: 5, Period: time.Minute})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestRateLimiterDifferentPeriods(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()

	tests := []struct {
		name   string
		limit  int
		period time.Duration
	}{
		{"per second", 10, time.Second},
		{"per minute", 60, time.Minute},
		{"per hour", 1000, time.Hour},
		{"per day", 5000, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := limiter.Allow(ctx, "test:"+tt.name, Rate{Limit: tt.limit, Period: tt.period})
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, tt.limit, result.Limit)
		})
	}
}
