package router

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gabrielmiguelok/applyform/pkg/limits"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger logging.Logger) Middleware {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("handler panic",
						logging.String("path", r.URL.Path),
						logging.String("panic", fmt.Sprint(rec)),
						logging.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecureHeadersConfig configures security headers.
type SecureHeadersConfig struct {
	// FrameOptions controls X-Frame-Options. Default: "DENY".
	FrameOptions string

	// ReferrerPolicy sets Referrer-Policy.
	ReferrerPolicy string

	// PermissionsPolicy sets Permissions-Policy.
	PermissionsPolicy string

	// ContentSecurityPolicy sets Content-Security-Policy when non-empty.
	ContentSecurityPolicy string

	// HSTSMaxAge enables Strict-Transport-Security on TLS requests when > 0.
	HSTSMaxAge int
}

// DefaultSecureHeadersConfig returns secure default configuration.
func DefaultSecureHeadersConfig() SecureHeadersConfig {
	return SecureHeadersConfig{
		FrameOptions:      "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "geolocation=(self), microphone=(), camera=()",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data: https:; connect-src 'self' ws: wss:; frame-ancestors 'none'",
		HSTSMaxAge: 31536000,
	}
}

// SecureHeaders adds security headers with the default configuration.
func SecureHeaders() Middleware {
	return SecureHeadersWithConfig(DefaultSecureHeadersConfig())
}

// SecureHeadersWithConfig adds security headers.
func SecureHeadersWithConfig(config SecureHeadersConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			if config.FrameOptions != "" {
				h.Set("X-Frame-Options", config.FrameOptions)
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", config.PermissionsPolicy)
			}
			if config.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", config.ContentSecurityPolicy)
			}
			if config.HSTSMaxAge > 0 && r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(config.HSTSMaxAge)+"; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit allows each client IP a burst of perSecond requests, refilled
// once per second.
func RateLimit(perSecond int) Middleware {
	buckets := make(map[string]*tokenBucket)
	var mu sync.Mutex

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := limits.ClientIP(r)

			mu.Lock()
			bucket, ok := buckets[ip]
			if !ok {
				bucket = newTokenBucket(perSecond)
				buckets[ip] = bucket
			}
			mu.Unlock()

			if !bucket.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenBucket struct {
	tokens   int
	max      int
	lastFill time.Time
	mu       sync.Mutex
}

func newTokenBucket(rate int) *tokenBucket {
	return &tokenBucket{tokens: rate, max: rate, lastFill: time.Now()}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if refill := int(now.Sub(tb.lastFill).Seconds()) * tb.max; refill > 0 {
		tb.tokens = min(tb.tokens+refill, tb.max)
		tb.lastFill = now
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}
