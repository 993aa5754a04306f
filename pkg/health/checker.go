// Package health provides liveness and readiness endpoints.
package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Status represents the health status of a service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Report is the aggregated outcome of all checks.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckFunc reports a problem by returning an error.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	timeout  time.Duration
	critical bool
}

// Checker runs registered checks concurrently.
type Checker struct {
	checks  []check
	version string
	mu      sync.RWMutex
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{version: version}
}

// Add registers a check whose failure degrades the service.
func (c *Checker) Add(name string, fn CheckFunc, timeout time.Duration) {
	c.add(check{name: name, fn: fn, timeout: timeout})
}

// AddCritical registers a check whose failure makes the service unhealthy.
func (c *Checker) AddCritical(name string, fn CheckFunc, timeout time.Duration) {
	c.add(check{name: name, fn: fn, timeout: timeout, critical: true})
}

func (c *Checker) add(ch check) {
	if ch.timeout <= 0 {
		ch.timeout = 5 * time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, ch)
}

// Run executes every check and aggregates the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := append([]check(nil), c.checks...)
	c.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now(),
		Version:   c.version,
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, ch := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, ch.timeout)
			defer cancel()

			start := time.Now()
			err := ch.fn(ctx)
			res := CheckResult{Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = StatusUnhealthy
				res.Error = err.Error()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	for i, ch := range checks {
		res := results[i]
		report.Checks[ch.name] = res
		if res.Status == StatusHealthy {
			continue
		}
		if ch.critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

// LivenessHandler answers 200 while the process runs.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive", "timestamp": time.Now()})
	})
}

// ReadinessHandler answers 503 when a critical check fails.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// CapacityCheck fails once count reaches limit.
func CapacityCheck(what string, count func() int, limit int) CheckFunc {
	return func(ctx context.Context) error {
		if n := count(); limit > 0 && n >= limit {
			return fmt.Errorf("%s at capacity: %d/%d", what, n, limit)
		}
		return nil
	}
}

// MemoryCheck fails when the heap in use exceeds maxBytes.
func MemoryCheck(maxBytes uint64) CheckFunc {
	return func(ctx context.Context) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.HeapInuse > maxBytes {
			return fmt.Errorf("heap in use %d exceeds %d bytes", m.HeapInuse, maxBytes)
		}
		return nil
	}
}
