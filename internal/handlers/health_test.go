package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/services"
)

type stubSystemService struct {
	reportFn func(context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx)
	}
	return services.SystemHealthReport{}, errors.New("not implemented")
}

func TestHealthzReportsUptime(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	current := base
	handler := NewHealthHandlers(WithHealthClock(func() time.Time { return current }))
	current = base.Add(90 * time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["uptime"] != "1m30s" {
		t.Fatalf("unexpected uptime %v", payload["uptime"])
	}
}

func TestReadyzReportsDependencyStatus(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Version:     "1.4.0",
				CommitSHA:   "abc1234",
				Environment: "prod",
				Uptime:      2 * time.Minute,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
				},
				GeneratedAt: now,
			}, nil
		},
	}
	handler := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" || payload["version"] != "1.4.0" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["commitSha"] != "abc1234" || payload["environment"] != "prod" {
		t.Fatalf("unexpected build metadata %v", payload)
	}
	checks, ok := payload["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks map, got %v", payload["checks"])
	}
	if _, ok := checks["firestore"]; !ok {
		t.Fatalf("expected firestore check, got %v", checks)
	}
}

func TestReadyzDegradedDependencyStillReady(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{Status: domain.HealthStatusDegraded}, nil
		},
	}
	handler := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected degraded to stay ready, got %d", rec.Code)
	}
}

func TestReadyzFailingDependency(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"pubsub": {Status: domain.HealthStatusError, Error: "context deadline exceeded"},
				},
			}, nil
		},
	}
	handler := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzCollectError(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{}, errors.New("collect failed")
		},
	}
	handler := NewHealthHandlers(WithHealthSystemService(system))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzWithoutSystemServiceFallsBackToLiveness(t *testing.T) {
	handler := NewHealthHandlers()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
