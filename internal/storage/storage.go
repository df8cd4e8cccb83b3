// Package storage deletes the image blobs referenced by pins.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the object was already gone.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable is returned by a client that failed to initialise.
	ErrUnavailable = errors.New("blob store unavailable")
)

// Unavailable stands in for a blob backend that could not be constructed.
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

func (u Unavailable) Name() string                                  { return u.Backend }
func (u Unavailable) Delete(ctx context.Context, path string) error { return u.err() }
func (u Unavailable) Ping(ctx context.Context) error                { return u.err() }
