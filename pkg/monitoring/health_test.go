package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	if hc.serviceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got %s", hc.serviceName)
	}
	if hc.version != "1.0.0" {
		t.Errorf("Expected version '1.0.0', got %s", hc.version)
	}
	if hc.components == nil {
		t.Error("Components map should be initialized")
	}
}

func TestUpdateConnection(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.UpdateConnection("store", StatusConnected, 100, nil)
	hc.UpdateConnection("cache_artifact", StatusDegraded, 3, errors.New("artifact missing"))

	health := hc.GetHealth()
	store, ok := health.Components["store"]
	if !ok {
		t.Fatal("store component should exist")
	}
	if store.Name != "store" || store.Status != StatusConnected || store.Latency != 100 || store.LastError != "" {
		t.Errorf("store = %+v", store)
	}

	artifact := health.Components["cache_artifact"]
	if artifact.LastError != "artifact missing" {
		t.Errorf("Expected error 'artifact missing', got %s", artifact.LastError)
	}

	hc.RemoveConnection("store")
	if _, ok := hc.GetHealth().Components["store"]; ok {
		t.Error("store should not exist after removal")
	}
}

func TestGetHealthStatus(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	steps := []struct {
		name, status string
		err          error
		want         string
	}{
		{"conn1", StatusConnected, nil, "healthy"},
		{"conn2", StatusDegraded, nil, "degraded"},
		{"conn3", StatusError, errors.New("test error"), "degraded"},
		{"conn4", "disconnected", errors.New("disconnected"), "degraded"},
		// 3 of 5 in error
		{"conn5", StatusError, errors.New("another error"), "unhealthy"},
	}

	if got := hc.GetHealth().Status; got != "healthy" {
		t.Errorf("Expected status 'healthy' with no components, got %s", got)
	}
	for _, s := range steps {
		hc.UpdateConnection(s.name, s.status, 0, s.err)
		if got := hc.GetHealth().Status; got != s.want {
			t.Errorf("after %s=%s: status = %s, want %s", s.name, s.status, got, s.want)
		}
	}
}

func TestGetHealthFields(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.SetInfo("store_roads", 12)

	health := hc.GetHealth()
	if health.Service != "test-service" || health.Version != "1.0.0" {
		t.Errorf("identity = %s %s", health.Service, health.Version)
	}
	if health.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}
	if health.Components == nil {
		t.Error("Components should not be nil")
	}
	for _, key := range []string{"goroutines", "memory_alloc_mb", "cpu_count", "version_info"} {
		if _, ok := health.Metrics[key]; !ok {
			t.Errorf("Metrics should contain %s", key)
		}
	}
	if health.Metrics["store_roads"] != 12 {
		t.Errorf("store_roads = %v, want 12", health.Metrics["store_roads"])
	}
}

func TestHealthHandler(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	w := httptest.NewRecorder()
	hc.HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got %s", ct)
	}

	var health ServiceHealth
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %s", health.Status)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.UpdateConnection("store", StatusError, 0, errors.New("not loaded"))
	hc.UpdateConnection("cache_artifact", StatusError, 0, errors.New("unreadable"))

	w := httptest.NewRecorder()
	hc.HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	w = httptest.NewRecorder()
	hc.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readiness status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.UpdateConnection("cache_artifact", StatusDegraded, 0, errors.New("artifact missing"))

	w := httptest.NewRecorder()
	hc.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode readiness response: %v", err)
	}
	if ready, ok := response["ready"].(bool); !ok || !ready {
		t.Error("a degraded service is still ready")
	}
	if response["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", response["status"])
	}
}

func TestLivenessHandler(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	w := httptest.NewRecorder()
	hc.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode liveness response: %v", err)
	}
	if alive, ok := response["alive"].(bool); !ok || !alive {
		t.Error("Expected alive to be true")
	}
	if _, exists := response["uptime"]; !exists {
		t.Error("Expected uptime field")
	}
}

func waitForStatus(t *testing.T, hc *HealthChecker, name, want string) ConnStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := hc.GetHealth().Components[name]; ok && c.Status == want {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("component %s never reached status %s", name, want)
	return ConnStatus{}
}

func TestConnectionMonitorSuccess(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	monitor := NewConnectionMonitor("cache_artifact", hc, func() error { return nil }, StatusDegraded, 50*time.Millisecond)
	defer monitor.Stop()
	monitor.Start()

	waitForStatus(t, hc, "cache_artifact", StatusConnected)
}

func TestConnectionMonitorFailureStatus(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	monitor := NewConnectionMonitor("cache_artifact", hc, func() error {
		return errors.New("artifact missing")
	}, StatusDegraded, 50*time.Millisecond)
	defer monitor.Stop()
	monitor.Start()

	c := waitForStatus(t, hc, "cache_artifact", StatusDegraded)
	if c.LastError != "artifact missing" {
		t.Errorf("Expected error 'artifact missing', got %s", c.LastError)
	}
	if got := hc.GetHealth().Status; got != "degraded" {
		t.Errorf("service status = %s, want degraded", got)
	}
}

func TestConnectionMonitorDefaultsToError(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	monitor := NewConnectionMonitor("store", hc, func() error { return errors.New("down") }, "", time.Second)
	if monitor.failStatus != StatusError {
		t.Errorf("failStatus = %s, want %s", monitor.failStatus, StatusError)
	}
	monitor.Stop()
}

func BenchmarkGetHealth(b *testing.B) {
	hc := NewHealthChecker("test-service", "1.0.0")
	defer hc.Shutdown()

	hc.UpdateConnection("store", StatusConnected, 100, nil)
	hc.UpdateConnection("cache_artifact", StatusError, 300, errors.New("test error"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.GetHealth()
	}
}
