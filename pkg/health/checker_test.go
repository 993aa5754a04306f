package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestChecker_AllPass(t *testing.T) {
	hc := NewChecker("1.0.0")
	hc.Add("ping", func(ctx context.Context) error { return nil }, time.Second)
	hc.AddCritical("sessions", CapacityCheck("sessions", func() int { return 1 }, 10), time.Second)

	report := hc.Run(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", report.Version)
	}
}

func TestChecker_NonCriticalFailureDegrades(t *testing.T) {
	hc := NewChecker("")
	hc.Add("webhook", func(ctx context.Context) error { return errors.New("unreachable") }, time.Second)
	hc.AddCritical("ping", func(ctx context.Context) error { return nil }, time.Second)

	report := hc.Run(context.Background())

	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.Checks["webhook"].Error != "unreachable" {
		t.Errorf("unexpected error %q", report.Checks["webhook"].Error)
	}
}

func TestChecker_Timeout(t *testing.T) {
	hc := NewChecker("")
	hc.AddCritical("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	report := hc.Run(context.Background())
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	hc := NewChecker("")
	hc.AddCritical("sessions", CapacityCheck("sessions", func() int { return 5 }, 5), time.Second)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report.Checks["sessions"].Error, "5/5") {
		t.Errorf("unexpected error %q", report.Checks["sessions"].Error)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker("").LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestMemoryCheck(t *testing.T) {
	if err := MemoryCheck(1 << 40)(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := MemoryCheck(1)(context.Background()); err == nil {
		t.Error("expected error for tiny limit")
	}
}
