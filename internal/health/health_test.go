package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
)

type staticChecker struct {
	name   string
	status Status
}

func (c *staticChecker) Name() string { return c.name }

func (c *staticChecker) Check(ctx context.Context) Check {
	return Check{Name: c.name, Status: c.status, Timestamp: time.Now()}
}

type staticFeed struct {
	live bool
	last time.Time
}

func (f *staticFeed) Live() bool                { return f.live }
func (f *staticFeed) LastPacketTime() time.Time { return f.last }

func TestManager_CheckAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded wins over healthy", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins over degraded", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"no checkers", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logger.NewNop(), nil)
			for i, st := range tt.statuses {
				m.RegisterChecker(&staticChecker{name: string(rune('a' + i)), status: st})
			}

			report := m.Check(context.Background())
			if report.Status != tt.want {
				t.Errorf("Expected overall status %s, got %s", tt.want, report.Status)
			}
			if len(report.Checks) != len(tt.statuses) {
				t.Errorf("Expected %d checks, got %d", len(tt.statuses), len(report.Checks))
			}
		})
	}
}

func TestManager_HealthEndpointStatusCodes(t *testing.T) {
	m := NewManager(logger.NewNop(), nil)
	m.RegisterChecker(&staticChecker{name: "db", status: StatusHealthy})

	w := httptest.NewRecorder()
	m.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for healthy, got %d", w.Code)
	}

	m.RegisterChecker(&staticChecker{name: "broken", status: StatusUnhealthy})
	w = httptest.NewRecorder()
	m.handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for unhealthy, got %d", w.Code)
	}
}

func TestManager_ReadinessToleratesDegraded(t *testing.T) {
	m := NewManager(logger.NewNop(), nil)
	m.RegisterChecker(&staticChecker{name: "provider", status: StatusDegraded})

	w := httptest.NewRecorder()
	m.handleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("A degraded appliance must stay ready, got %d", w.Code)
	}
}

func TestDatabaseChecker(t *testing.T) {
	ctx := context.Background()

	check := NewDatabaseChecker("").Check(ctx)
	if check.Status != StatusDegraded {
		t.Errorf("Expected degraded without a path, got %s", check.Status)
	}

	// A missing file is fine, the store creates it on first open.
	check = NewDatabaseChecker(filepath.Join(t.TempDir(), "nope.db")).Check(ctx)
	if check.Status != StatusHealthy {
		t.Errorf("Expected healthy for a not-yet-created database, got %s", check.Status)
	}
}

func TestStorageChecker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	check := NewStorageChecker(dir).Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s: %s", check.Status, check.Message)
	}
}

func TestProviderChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	check := NewProviderChecker(srv.URL).Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s: %s", check.Status, check.Message)
	}

	check = NewProviderChecker("http://127.0.0.1:1").Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("Expected degraded for unreachable provider, got %s", check.Status)
	}

	check = NewProviderChecker("").Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("Expected degraded without a URL, got %s", check.Status)
	}
}

func TestFeedChecker(t *testing.T) {
	ctx := context.Background()

	check := NewFeedChecker(nil).Check(ctx)
	if check.Status != StatusHealthy {
		t.Errorf("No camera is a valid configuration, got %s", check.Status)
	}

	check = NewFeedChecker(&staticFeed{live: true, last: time.Now()}).Check(ctx)
	if check.Status != StatusHealthy {
		t.Errorf("Expected healthy for a live feed, got %s", check.Status)
	}

	check = NewFeedChecker(&staticFeed{live: false}).Check(ctx)
	if check.Status != StatusDegraded {
		t.Errorf("A dead feed degrades but does not kill the appliance, got %s", check.Status)
	}
}
