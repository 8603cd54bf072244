// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aegis-foundation/aegis/lib/config"
)

// withRequestLogging records method, path, status, and duration for
// every request.
func withRequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush passes through so the event-stream endpoint keeps working
// behind the middleware chain.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// withAuth enforces API-key authentication. The configured header
// must carry a key whose SHA-256 hex digest matches one of the stored
// hashes; plaintext keys are never stored or compared. Rejections are
// HTTP 401 with a JSON body — no protocol frame is emitted before
// routing.
func withAuth(authConfig config.AuthConfig, logger *slog.Logger, next http.Handler) http.Handler {
	if !authConfig.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authConfig.AllowHealthUnauthenticated && r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get(authConfig.APIKeyHeader)
		if presented == "" {
			writeJSONError(w, http.StatusUnauthorized, map[string]any{
				"error":  "missing API key",
				"header": authConfig.APIKeyHeader,
			})
			return
		}

		digest := sha256.Sum256([]byte(presented))
		presentedHex := hex.EncodeToString(digest[:])
		for _, stored := range authConfig.APIKeys {
			if subtle.ConstantTimeCompare([]byte(presentedHex), []byte(strings.ToLower(stored))) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		logger.Warn("rejected request with invalid API key", "path", r.URL.Path)
		writeJSONError(w, http.StatusUnauthorized, map[string]any{"error": "invalid API key"})
	})
}

// clientLimiters is a token bucket per client identity.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiters(cfg config.RateLimitConfig) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.BurstSize,
	}
}

func (c *clientLimiters) allow(clientKey string) bool {
	c.mu.Lock()
	limiter, ok := c.limiters[clientKey]
	if !ok {
		limiter = rate.NewLimiter(c.rate, c.burst)
		c.limiters[clientKey] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

// withRateLimit applies the per-client token bucket. The client key
// is the first X-Forwarded-For entry when present, otherwise the
// source address. Exhaustion is HTTP 429.
func withRateLimit(limitConfig config.RateLimitConfig, logger *slog.Logger, next http.Handler) http.Handler {
	if !limitConfig.Enabled {
		return next
	}
	limiters := newClientLimiters(limitConfig)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := clientIdentity(r)
		if !limiters.allow(clientKey) {
			logger.Warn("rate limit exceeded", "client", clientKey)
			writeJSONError(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate limit exceeded",
				"retry_after": 1,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withMetrics counts every request against its route.
func withMetrics(metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordRequest(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func clientIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
