package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/cache"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/realtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:     "0",
		Env:      "development",
		LogLevel: "error",
		Spelling: "snake",
		TenantID: "tenant-1",
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(testConfig(), append([]Option{WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func do(s *Server, method, path, tenantID, env, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != "" {
		req.Header.Set(businessmodel.HeaderTenantID, tenantID)
	}
	if env != "" {
		req.Header.Set(businessmodel.HeaderEnvironment, env)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestNewRejectsUnknownSpelling(t *testing.T) {
	cfg := testConfig()
	cfg.Spelling = "kebab"
	_, err := New(cfg, WithLogger(logging.Discard()))
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, WithCacheCheck("cache", cache.NewMemory()))

	w := do(s, http.MethodGet, "/health", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string `json:"status"`
		Checks []struct {
			Name    string `json:"name"`
			Healthy bool   `json:"healthy"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)

	names := make([]string, 0, len(body.Checks))
	for _, c := range body.Checks {
		names = append(names, c.Name)
		assert.True(t, c.Healthy, c.Name)
	}
	assert.ElementsMatch(t, []string{"plan_store", "cache"}, names)
}

func TestLivenessAndReadiness(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health/live", "", "", "").Code)

	// Not ready until Run
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/health/ready", "", "", "").Code)

	s.ready.Store(true)
	w := do(s, http.MethodGet, "/health/ready", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connectedClients")

	s.healthy.Store(false)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/health/live", "", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(s, http.MethodGet, "/health/live", "", "", "")

	w := do(s, http.MethodGet, "/metrics", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/health/live", "", "", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Len(t, w.Header().Get(businessmodel.HeaderRequestID), 32)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(businessmodel.HeaderRequestID, "req-123")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(businessmodel.HeaderRequestID))
}

func TestCORSPreflightOnPlanRoutes(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, businessmodel.BasePath+"/plans", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "x-tenant-id")
}

func TestPlanRoutesRequireTenant(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, businessmodel.BasePath+"/plans", "", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_tenant")
}

func TestSeededTenantHasDemoPlansInBothEnvironments(t *testing.T) {
	s := newTestServer(t)

	for _, env := range []string{"live", "test"} {
		w := do(s, http.MethodGet, businessmodel.BasePath+"/plans", "tenant-1", env, "")
		require.Equal(t, http.StatusOK, w.Code, env)
		plans, ok := businessmodel.DecodePlans(w.Body.Bytes())
		require.True(t, ok, env)
		assert.Len(t, plans, 2, env)
	}

	// Other tenants start empty
	w := do(s, http.MethodGet, businessmodel.BasePath+"/plans", "tenant-2", "live", "")
	plans, ok := businessmodel.DecodePlans(w.Body.Bytes())
	require.True(t, ok)
	assert.Empty(t, plans)
}

func TestNoSeedWithoutTenant(t *testing.T) {
	cfg := testConfig()
	cfg.TenantID = ""
	s, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer s.rateLimiter.Stop()

	w := do(s, http.MethodGet, businessmodel.BasePath+"/plans", "tenant-1", "live", "")
	plans, ok := businessmodel.DecodePlans(w.Body.Bytes())
	require.True(t, ok)
	assert.Empty(t, plans)
}

func TestEnvironmentChangeIsPushedOverWebSocket(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.realtimeHub.Run(ctx)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?tenant=tenant-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration happens asynchronously after the upgrade
	require.Eventually(t, func() bool {
		return s.realtimeHub.Stats()["connectedClients"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPut, ts.URL+businessmodel.BasePath+"/environment",
		strings.NewReader(`{"environment":"test"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(businessmodel.HeaderTenantID, "tenant-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev realtime.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventEnvironmentChanged, ev.Type)
	assert.Equal(t, "tenant-1", ev.TenantID)
	assert.Equal(t, "test", ev.Environment)
}

func TestShutdownWithoutRun(t *testing.T) {
	s := newTestServer(t)
	s.drainDelay = 0
	assert.NoError(t, s.Shutdown())
	assert.False(t, s.ready.Load())
}
