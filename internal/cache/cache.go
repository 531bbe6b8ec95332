// Package cache memoizes analyze responses. A report is a pure function of
// the submitted notebook and the engine configuration, so entries are keyed
// by the request body digest plus the configuration fingerprint: resubmitting
// an unchanged notebook skips the analyzer pipeline, and a weight or
// threshold change can never serve a report scored under the old tables.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/monitoring"
)

const sweepInterval = 5 * time.Minute

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is a TTL-bounded report cache. Expired entries are dropped on read
// and swept periodically in the background; Close stops the sweeper.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration

	// fingerprint identifies the engine configuration the cached reports
	// were produced under. It is mixed into every key.
	fingerprint string

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewCache builds a cache whose entries live for ttl and are only valid for
// the engine configuration identified by fingerprint.
func NewCache(ttl time.Duration, fingerprint string) *Cache {
	c := &Cache{
		entries:     make(map[string]*entry),
		ttl:         ttl,
		fingerprint: fingerprint,
		done:        make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Close stops the background sweeper. The cache stays usable afterwards;
// expired entries are then only dropped on read.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
					c.evictions.Add(1)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Key derives the cache key for one request body under the current
// configuration fingerprint.
func (c *Cache) Key(body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.fingerprint))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached payload for key. An expired entry counts as a miss
// and is evicted on the spot.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur == e {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.payload, true
}

// Set stores payload under key for the configured TTL.
func (c *Cache) Set(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		payload:   payload,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes every entry, for example after a configuration reload.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
}

// Size returns the number of stored entries, expired ones included until
// the next read or sweep.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats reports cache effectiveness counters.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	active := len(c.entries)
	c.mu.RUnlock()

	return map[string]interface{}{
		"entries":            active,
		"hits":               c.hits.Load(),
		"misses":             c.misses.Load(),
		"evictions":          c.evictions.Load(),
		"ttl_seconds":        c.ttl.Seconds(),
		"config_fingerprint": c.fingerprint,
	}
}

// Middleware caches successful responses to POST requests on cachePath. The
// request body is the entry's identity; everything else about the request is
// irrelevant to the report.
func (c *Cache) Middleware(cachePath string, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.Request.URL.Path != cachePath {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		key := c.Key(body)
		if payload, ok := c.Get(key); ok {
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json", payload)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()
		ctx.Header("X-Cache", "MISS")

		wrapper := &captureWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		// Only a completed report is worth keeping; errors are cheap to
		// recompute and may be transient.
		if ctx.Writer.Status() == http.StatusOK {
			c.Set(key, wrapper.body.Bytes())
		}
	}
}

// captureWriter tees the response body so a successful report can be stored.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
