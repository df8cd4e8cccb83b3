package auditlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/pins"
)

// errCorrupt marks a log file that exists but does not hold a JSON array.
var errCorrupt = errors.New("corrupt log file")

// File is the local deleted-pins log: one JSON array rewritten on every append.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a log backed by path. The file is created on first append.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Read returns the stored entries. found is false when the file does not exist.
// A file that exists but cannot be parsed is an error.
func (f *File) Read() (entries []pins.LogEntry, found bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *File) read() ([]pins.LogEntry, bool, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", f.path, err)
	}
	var entries []pins.LogEntry
	if len(bytes.TrimSpace(b)) == 0 {
		return entries, true, nil
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, true, fmt.Errorf("parse %s: %w: %w", f.path, errCorrupt, err)
	}
	return entries, true, nil
}

// Append adds e to the end of the log. A missing log starts over empty and an
// unparsable one is first moved aside. Any other read error is returned and
// the file is left alone.
func (f *File) Append(e pins.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, _, err := f.read()
	switch {
	case errors.Is(err, errCorrupt):
		f.quarantine(err)
		entries = nil
	case err != nil:
		return fmt.Errorf("append: %w", err)
	}
	entries = append(entries, e)

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	return f.replace(b)
}

func (f *File) quarantine(cause error) {
	dst := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().UnixNano())
	if err := os.Rename(f.path, dst); err != nil {
		log.Warn().Err(err).Str("file", f.path).Msg("could not move unreadable log aside")
		return
	}
	log.Warn().Err(cause).Str("file", f.path).Str("moved_to", dst).Msg("local log corrupt, starting a new one")
}

// replace writes b to a temp file in the same directory and renames it into place.
func (f *File) replace(b []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
