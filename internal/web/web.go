package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/auditlog"
	"github.com/local/pinsweeper/internal/metrics"
	"github.com/local/pinsweeper/internal/pins"
	"github.com/local/pinsweeper/internal/statuscheck"
)

//go:embed templates/*.html
var templates embed.FS

type LogLoader interface {
	Load(ctx context.Context) (auditlog.Snapshot, error)
}

type HealthChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

type Options struct {
	Logs          LogLoader
	Health        HealthChecker
	RemoteName    string
	Schedule      string
	RetentionDays int
	NextRun       func() *time.Time
}

type Web struct {
	tpl  *template.Template
	opts Options
}

func New(opts Options) *Web {
	if opts.RemoteName == "" {
		opts.RemoteName = "remote"
	}
	tpl := template.Must(template.ParseFS(templates, "templates/*.html"))
	return &Web{tpl: tpl, opts: opts}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", w.handleIndex)
	mux.HandleFunc("GET /logs", w.handleLogs)
	mux.HandleFunc("GET /health", w.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Schedule":      describeSchedule(w.opts.Schedule),
		"RetentionDays": w.opts.RetentionDays,
	}
	if w.opts.NextRun != nil {
		if next := w.opts.NextRun(); next != nil {
			data["NextRun"] = next.Format(time.RFC1123)
		}
	}
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.tpl.ExecuteTemplate(wr, "index.html", data); err != nil {
		log.Error().Err(err).Msg("render index")
	}
}

type logsResp struct {
	Count   int             `json:"count"`
	Logs    []pins.LogEntry `json:"logs"`
	Status  string          `json:"status"`
	Source  string          `json:"source,omitempty"`
	Message string          `json:"message,omitempty"`
}

type errorResp struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func (w *Web) handleLogs(wr http.ResponseWriter, r *http.Request) {
	snap, err := w.opts.Logs.Load(r.Context())
	if err != nil {
		metrics.IncLogRead("error")
		log.Error().Err(err).Msg("error reading logs")
		writeJSON(wr, http.StatusInternalServerError, errorResp{Error: err.Error(), Status: "error"})
		return
	}

	resp := logsResp{Count: len(snap.Entries), Logs: snap.Entries, Status: "success", Source: snap.Source}
	if resp.Logs == nil {
		resp.Logs = []pins.LogEntry{}
	}
	switch {
	case snap.Source == "":
		metrics.IncLogRead("empty")
		resp.Message = "No logs found in either " + displayName(w.opts.RemoteName) + " or local file"
	case snap.Source == w.opts.RemoteName:
		metrics.IncLogRead("remote")
	default:
		metrics.IncLogRead("local")
	}
	writeJSON(wr, http.StatusOK, resp)
}

func (w *Web) handleHealth(wr http.ResponseWriter, r *http.Request) {
	if w.opts.Health == nil {
		writeJSON(wr, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s := w.opts.Health.Summary(r.Context())
	code := http.StatusOK
	if !s.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(wr, code, s)
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(code)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func describeSchedule(expr string) string {
	if expr == "" || expr == "0 1 * * *" {
		return "daily at 1:00 AM"
	}
	return "on schedule " + expr
}

func displayName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
