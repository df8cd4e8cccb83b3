package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pinsweeper/internal/auditlog"
	"github.com/local/pinsweeper/internal/pins"
	"github.com/local/pinsweeper/internal/statuscheck"
)

type stubRemote struct {
	entries []pins.LogEntry
	err     error
}

func (s stubRemote) Name() string { return "firestore" }
func (s stubRemote) WriteLog(ctx context.Context, docID string, e pins.LogEntry) error {
	return nil
}
func (s stubRemote) ListLogs(ctx context.Context) ([]pins.LogEntry, error) { return s.entries, s.err }

type stubHealth statuscheck.Summary

func (s stubHealth) Summary(ctx context.Context) statuscheck.Summary { return statuscheck.Summary(s) }

func serve(t *testing.T, w *Web, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func newWeb(remote auditlog.Remote, local *auditlog.File) *Web {
	return New(Options{Logs: auditlog.NewReader(remote, local), RemoteName: "firestore", RetentionDays: 30})
}

func TestLogsFromRemote(t *testing.T) {
	remote := stubRemote{entries: []pins.LogEntry{{ID: "d1", Fields: map[string]any{"title": "a"}}}}
	w := newWeb(remote, auditlog.NewFile(filepath.Join(t.TempDir(), "log.json")))

	rec, body := serve(t, w, "/logs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "firestore", body["source"])
	logs := body["logs"].([]any)
	assert.Equal(t, "d1", logs[0].(map[string]any)["id"])
}

func TestLogsFallBackToLocalFile(t *testing.T) {
	local := auditlog.NewFile(filepath.Join(t.TempDir(), "log.json"))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, local.Append(pins.LogEntry{ID: id, Timestamp: id, PinID: id}))
	}
	w := newWeb(stubRemote{err: errors.New("unavailable")}, local)

	rec, body := serve(t, w, "/logs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["count"])
	assert.Equal(t, "local file (firestore unavailable)", body["source"])
	assert.Len(t, body["logs"], 3)
}

func TestLogsEmptyEverywhere(t *testing.T) {
	w := newWeb(stubRemote{err: errors.New("unavailable")}, auditlog.NewFile(filepath.Join(t.TempDir(), "log.json")))

	rec, body := serve(t, w, "/logs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["logs"])
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, body, "source")
	assert.Equal(t, "No logs found in either Firestore or local file", body["message"])
}

func TestLogsServerError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")
	require.NoError(t, os.WriteFile(path, []byte("[{broken"), 0o644))
	w := newWeb(stubRemote{err: errors.New("unavailable")}, auditlog.NewFile(path))

	rec, body := serve(t, w, "/logs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.NotEmpty(t, body["error"])
}

func TestIndexPage(t *testing.T) {
	next := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)
	w := New(Options{
		Logs:          auditlog.NewReader(nil, auditlog.NewFile(filepath.Join(t.TempDir(), "l.json"))),
		RetentionDays: 30,
		NextRun:       func() *time.Time { return &next },
	})

	rec, _ := serve(t, w, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Autodelete Server")
	assert.Contains(t, rec.Body.String(), `href="/logs"`)
	assert.Contains(t, rec.Body.String(), "daily at 1:00 AM")
	assert.Contains(t, rec.Body.String(), "Next run:")

	rec, _ = serve(t, w, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	healthy := stubHealth{Store: statuscheck.Status{OK: true}, Blobs: statuscheck.Status{OK: true}, LocalLog: statuscheck.Status{OK: true}}
	w := New(Options{Health: healthy})
	rec, _ := serve(t, w, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	sick := healthy
	sick.Store = statuscheck.Status{OK: false, Message: "down"}
	w = New(Options{Health: sick})
	rec, body := serve(t, w, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", body["store"].(map[string]any)["message"])
}
