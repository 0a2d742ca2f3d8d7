package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LzdqesjG/BungeeLog/internal/config"
	"github.com/LzdqesjG/BungeeLog/internal/console"
	"github.com/LzdqesjG/BungeeLog/internal/logsink"
	"github.com/LzdqesjG/BungeeLog/internal/relay"
)

func testServer(t *testing.T, apiToken string, reload Reloader) (*Server, *relay.Service) {
	t.Helper()

	cfg := config.Default()
	cfg.LogsDir = t.TempDir()
	cfg.DailyRolling = false
	cfg.EnableConsoleMirror = false

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	sink, err := logsink.New(logsink.Options{Dir: cfg.LogsDir, MaxFiles: cfg.MaxLogFiles}, clock)
	require.NoError(t, err)

	relaySvc := relay.NewService(cfg, sink, console.NewLogExecutor(), clock)
	t.Cleanup(relaySvc.Shutdown)

	if reload == nil {
		reload = func() error { return nil }
	}
	return NewServer("127.0.0.1:0", relaySvc, reload, apiToken), relaySvc
}

func doRequest(s *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func auditLog(t *testing.T, relaySvc *relay.Service) string {
	t.Helper()
	data, err := os.ReadFile(relaySvc.Status().LogPath)
	require.NoError(t, err)
	return string(data)
}

func TestHandleIngestEvent(t *testing.T) {
	srv, relaySvc := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/events",
		`{"kind":"player_join","player":{"name":"Alice","uuid":"uuid-1"},"addr":"1.2.3.4"}`, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "[10:00:00] [INFO] [Player Join] Alice (1.2.3.4)\n", auditLog(t, relaySvc))
}

func TestHandleIngestEvent_Malformed(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/events", `{"kind":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"malformed event"}`, rec.Body.String())
}

func TestHandleIngestEvent_UnknownKind(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/events", `{"kind":"player_teleport"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unknown event kind"}`, rec.Body.String())
}

func TestHandleStatus(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodGet, "/api/status", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"sink_healthy":true`)
	assert.Contains(t, body, `"webapi_running":false`)
	assert.Contains(t, body, `"webapi_enabled":false`)
}

func TestHandleReload(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/reload", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"reloaded"}`, rec.Body.String())
}

func TestHandleReload_Failure(t *testing.T) {
	srv, _ := testServer(t, "", func() error { return errors.New("config file corrupt") })

	rec := doRequest(srv, http.MethodPost, "/api/reload", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"config file corrupt"}`, rec.Body.String())
}

func TestHandleTest(t *testing.T) {
	srv, relaySvc := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/test", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, auditLog(t, relaySvc), "This is a test log message")
}

func TestHandleBroadcast_RequiresMessage(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/broadcast", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"message is required"}`, rec.Body.String())
}

func TestHandleBroadcast_WebAPINotRunning(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodPost, "/api/broadcast", `{"message":"hello"}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"webapi is not running"}`, rec.Body.String())
}

func TestHandleLiveness(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodGet, "/health/live", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpointIsExposed(t *testing.T) {
	srv, _ := testServer(t, "", nil)

	rec := doRequest(srv, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPITokenGuardsAPIRoutes(t *testing.T) {
	srv, _ := testServer(t, "sekrit", nil)

	rec := doRequest(srv, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code) // missing key

	wrong := http.Header{}
	wrong.Set("Authorization", "Bearer nope")
	rec = doRequest(srv, http.MethodGet, "/api/status", "", wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	right := http.Header{}
	right.Set("Authorization", "Bearer sekrit")
	rec = doRequest(srv, http.MethodGet, "/api/status", "", right)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Observability routes stay open.
	rec = doRequest(srv, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
