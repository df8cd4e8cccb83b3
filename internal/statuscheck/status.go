package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Pinger models the minimal capability we need from a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates health checks for the record store, the blob store
// and the local log file.
type Checker struct {
	store    Pinger
	blobs    Pinger
	localLog string
	timeout  time.Duration
}

// Options configures the Checker.
type Options struct {
	Store    Pinger
	Blobs    Pinger
	LocalLog string
	Timeout  time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Store    Status `json:"store"`
	Blobs    Status `json:"blobs"`
	LocalLog Status `json:"local_log"`
}

// Healthy reports whether every subsystem is OK.
func (s Summary) Healthy() bool {
	return s.Store.OK && s.Blobs.OK && s.LocalLog.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Checker{store: opts.Store, blobs: opts.Blobs, localLog: opts.LocalLog, timeout: opts.Timeout}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Store:    c.ping(ctx, c.store),
		Blobs:    c.ping(ctx, c.blobs),
		LocalLog: c.checkLocalLog(),
	}
}

func (c *Checker) ping(ctx context.Context, p Pinger) Status {
	if p == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

// checkLocalLog verifies the log directory exists and is writable.
func (c *Checker) checkLocalLog() Status {
	if c.localLog == "" {
		return Status{OK: false, Message: "path not configured"}
	}
	dir := filepath.Dir(c.localLog)
	info, err := os.Stat(dir)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if !info.IsDir() {
		return Status{OK: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	f.Close()
	_ = os.Remove(f.Name())
	return Status{OK: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
