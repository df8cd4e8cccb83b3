// Package auditlog records deleted pins to a remote log collection and a
// local JSON file, and reads them back for the log viewer.
//
// The two sinks fail independently. A failed remote write never prevents the
// local append, and entries are not deduplicated across runs.
package auditlog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/metrics"
	"github.com/local/pinsweeper/internal/pins"
)

// Remote is a log collection in the record store.
type Remote interface {
	Name() string
	WriteLog(ctx context.Context, docID string, e pins.LogEntry) error
	ListLogs(ctx context.Context) ([]pins.LogEntry, error)
}

// Outcome reports how each sink handled one entry.
type Outcome struct {
	DocID     string
	RemoteErr error
	LocalErr  error
}

// Writer is the {primary, fallback} pair used by the sweeper.
type Writer struct {
	remote Remote
	local  *File
	now    func() time.Time
}

// NewWriter returns a writer. remote may be nil, in which case only the local file is written.
func NewWriter(remote Remote, local *File) *Writer {
	return &Writer{remote: remote, local: local, now: time.Now}
}

// Record writes e to the remote collection, then always appends it locally.
// The remote document id is the write time, suffixed with the pin id so that
// entries recorded within the same instant do not overwrite each other.
func (w *Writer) Record(ctx context.Context, e pins.LogEntry) Outcome {
	out := Outcome{DocID: pins.DocumentID(w.now())}
	if e.PinID != "" {
		out.DocID += "-" + e.PinID
	}

	if w.remote != nil {
		if err := w.remote.WriteLog(ctx, out.DocID, e); err != nil {
			out.RemoteErr = err
			metrics.IncAuditWrite("remote", "failed")
			log.Warn().Err(err).Str("doc_id", out.DocID).Str("pin_id", e.PinID).
				Str("remote", w.remote.Name()).Msg("failed to save log remotely, saving locally")
		} else {
			metrics.IncAuditWrite("remote", "ok")
		}
	}

	if err := w.local.Append(e); err != nil {
		out.LocalErr = err
		metrics.IncAuditWrite("local", "failed")
		log.Error().Err(err).Str("file", w.local.Path()).Str("pin_id", e.PinID).Msg("failed to append local log")
	} else {
		metrics.IncAuditWrite("local", "ok")
	}
	return out
}
