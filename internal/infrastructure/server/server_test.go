package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/taskmaster/taskhub/internal/adapters/http"
	"github.com/taskmaster/taskhub/internal/application/services"
	"github.com/taskmaster/taskhub/internal/infrastructure/config"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/infrastructure/metrics"
	"github.com/taskmaster/taskhub/internal/testutil"
)

type fakeDB struct {
	err error
}

func (f fakeDB) HealthCheck(context.Context) error { return f.err }

func (f fakeDB) GetConnectionInfo() map[string]interface{} {
	return map[string]interface{}{"open_connections": 1}
}

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "TaskHub", Version: "test"},
		Security: config.SecurityConfig{CORSAllowedOrigins: "*"},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
		JWT:      config.JWTConfig{Secret: "test", ExpiresIn: time.Hour},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, db HealthChecker) (*Server, *metrics.Metrics) {
	t.Helper()

	log := logger.NewNop()
	store := testutil.NewMemoryStore()
	m := metrics.New()

	authSvc := services.NewAuthService(store.Users(), cfg.JWT, log)
	taskSvc := services.NewTaskService(store.Tasks(), store, &testutil.RecordingPublisher{}, m, log)

	srv := New(cfg, db, m, log, authSvc, httpadapter.Handlers{
		Auth: httpadapter.NewAuthHandler(authSvc, log),
		Task: httpadapter.NewTaskHandler(taskSvc, log),
	})
	return srv, m
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), fakeDB{})

	rec := get(srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(srv, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(srv, "/health/detailed")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProbes_DatabaseDown(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), fakeDB{err: errors.New("connection refused")})

	rec := get(srv, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(srv, "/health/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(srv, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRecordRenderedStatus(t *testing.T) {
	srv, m := newTestServer(t, testConfig(), fakeDB{})

	rec := get(srv, "/api/v1/tasks/my")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/tasks/my", "401")))

	rec = get(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), fakeDB{})

	rec := get(srv, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body httpadapter.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimitRequests = 2
	cfg.Security.RateLimitWindow = time.Minute
	srv, _ := newTestServer(t, cfg, fakeDB{})

	assert.Equal(t, http.StatusUnauthorized, get(srv, "/api/v1/tasks/my").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/api/v1/tasks/my").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(srv, "/api/v1/tasks/my").Code)

	// probes are never limited
	assert.Equal(t, http.StatusOK, get(srv, "/health").Code)
}
