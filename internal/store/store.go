// Package store holds the record store clients: the pins collection that
// the sweeper drains and the remote deleted-pins log collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/local/pinsweeper/internal/pins"
)

// ErrUnavailable is returned by every call on a client that failed to initialise.
var ErrUnavailable = errors.New("record store unavailable")

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccount identifies the Google project a credential file belongs to.
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string // empty for non service-account credentials
}

// LoadServiceAccount reads and validates a Google credential file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(context.Background(), b, cloudPlatformScope)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return ServiceAccount{}, fmt.Errorf("credentials %s: missing project_id", path)
	}
	sa := ServiceAccount{ProjectID: creds.ProjectID}
	if jwt, err := google.JWTConfigFromJSON(b); err == nil {
		sa.ClientEmail = jwt.Email
	}
	return sa, nil
}

// Unavailable stands in for a backend that could not be constructed.
// Every operation fails with ErrUnavailable wrapping the underlying cause.
type Unavailable struct {
	Backend string
	Cause   error
}

func (u Unavailable) err() error {
	if u.Cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Cause)
}

func (u Unavailable) Name() string { return u.Backend }

func (u Unavailable) StalePins(ctx context.Context, cutoff time.Time) ([]pins.Pin, error) {
	return nil, u.err()
}

func (u Unavailable) DeletePin(ctx context.Context, id string) error { return u.err() }

func (u Unavailable) WriteLog(ctx context.Context, docID string, e pins.LogEntry) error {
	return u.err()
}

func (u Unavailable) ListLogs(ctx context.Context) ([]pins.LogEntry, error) { return nil, u.err() }

func (u Unavailable) Ping(ctx context.Context) error { return u.err() }

func (u Unavailable) Close() error { return nil }

// lastUpdated coerces a stored lastUpdated value into a time.
func lastUpdated(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	}
	return time.Time{}, false
}
