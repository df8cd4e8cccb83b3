package auditlog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/pins"
)

// Snapshot is the log as served to viewers.
type Snapshot struct {
	Entries []pins.LogEntry
	// Source names the origin; empty when neither sink had data.
	Source string
}

// Reader prefers the remote collection and falls back to the local file.
type Reader struct {
	remote Remote
	local  *File
}

func NewReader(remote Remote, local *File) *Reader {
	return &Reader{remote: remote, local: local}
}

// LocalSource is the source tag used when the remote named remote could not be read.
func LocalSource(remote string) string {
	return fmt.Sprintf("local file (%s unavailable)", remote)
}

// Load returns the remote log if it can be listed. Otherwise it reads the
// local file. A remote failure is logged and not reported to the caller.
// A reachable but empty remote yields an empty snapshot with no source.
func (r *Reader) Load(ctx context.Context) (Snapshot, error) {
	remoteName := "remote"
	if r.remote != nil {
		remoteName = r.remote.Name()
		entries, err := r.remote.ListLogs(ctx)
		if err == nil {
			if len(entries) == 0 {
				return Snapshot{Entries: []pins.LogEntry{}}, nil
			}
			return Snapshot{Entries: entries, Source: remoteName}, nil
		}
		log.Info().Err(err).Str("remote", remoteName).Msg("remote log unavailable, trying local file")
	}

	entries, found, err := r.local.Read()
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		return Snapshot{Entries: []pins.LogEntry{}}, nil
	}
	if entries == nil {
		entries = []pins.LogEntry{}
	}
	return Snapshot{Entries: entries, Source: LocalSource(remoteName)}, nil
}
