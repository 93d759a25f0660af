package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"task-monitor/internal/monitor"
	"task-monitor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	snap monitor.Snapshot
}

func (s staticSource) Snapshot() monitor.Snapshot { return s.snap }

func TestHealthz(t *testing.T) {
	s := New(Config{Addr: ":0", Source: staticSource{}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatus_ReturnsSnapshot(t *testing.T) {
	at := time.Date(2026, time.October, 13, 18, 0, 0, 0, time.UTC)
	s := New(Config{Addr: ":0", Source: staticSource{snap: monitor.Snapshot{
		CycleID:           "c-1",
		LastCycleAt:       at,
		Cycles:            3,
		ProjectsWithTasks: []models.ProjectTasks{{ProjectID: "p1", Name: "Alpha", Count: 2}},
		LastNotified:      map[string]time.Time{"p1": at},
	}}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"cycle_id": "c-1",
		"last_cycle_at": "2026-10-13T18:00:00Z",
		"cycles": 3,
		"projects_with_tasks": [{"project_id": "p1", "name": "Alpha", "count": 2}],
		"last_notified": {"p1": "2026-10-13T18:00:00Z"}
	}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	s := New(Config{Addr: ":0", AllowedOrigins: []string{"https://dash.example.com"}, Source: staticSource{}})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisabledByDefault(t *testing.T) {
	s := New(Config{Addr: ":0", Source: staticSource{}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s := New(Config{Addr: ":0", Source: staticSource{}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Source: staticSource{}})

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// Shutdown before or after ListenAndServe begins both end Start cleanly.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
