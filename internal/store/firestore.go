package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/local/pinsweeper/internal/pins"
)

// FirestoreOptions configures a Firestore client.
type FirestoreOptions struct {
	ProjectID       string
	CredentialsFile string
	PinsCollection  string
	LogCollection   string
}

// Firestore reads and deletes pins and stores deleted-pin log documents.
type Firestore struct {
	client *firestore.Client
	pins   string
	logs   string
}

// NewFirestore creates a client. No network call is made until first use.
func NewFirestore(ctx context.Context, opts FirestoreOptions) (*Firestore, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firestore: project id is required")
	}
	var copts []option.ClientOption
	if opts.CredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	c, err := firestore.NewClient(ctx, opts.ProjectID, copts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Firestore{client: c, pins: opts.PinsCollection, logs: opts.LogCollection}, nil
}

func (f *Firestore) Name() string { return "firestore" }

func (f *Firestore) Close() error { return f.client.Close() }

// StalePins returns every pin whose lastUpdated is strictly before cutoff.
func (f *Firestore) StalePins(ctx context.Context, cutoff time.Time) ([]pins.Pin, error) {
	it := f.client.Collection(f.pins).Where(pins.FieldLastUpdated, "<", cutoff).Documents(ctx)
	defer it.Stop()

	var out []pins.Pin
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", f.pins, err)
		}
		data := doc.Data()
		p := pins.Pin{ID: doc.Ref.ID, Data: data}
		if ts, ok := lastUpdated(data[pins.FieldLastUpdated]); ok {
			p.LastUpdated = ts
		} else {
			log.Warn().Str("pin_id", p.ID).Msg("pin lastUpdated has unexpected type")
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *Firestore) DeletePin(ctx context.Context, id string) error {
	if _, err := f.client.Collection(f.pins).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", f.pins, id, err)
	}
	return nil
}

// WriteLog stores the entry under docID. The id field is implied by the document name.
func (f *Firestore) WriteLog(ctx context.Context, docID string, e pins.LogEntry) error {
	doc := e.Document()
	delete(doc, "id")
	if _, err := f.client.Collection(f.logs).Doc(docID).Set(ctx, doc); err != nil {
		return fmt.Errorf("write %s/%s: %w", f.logs, docID, err)
	}
	return nil
}

// ListLogs returns all log documents in document id order.
func (f *Firestore) ListLogs(ctx context.Context) ([]pins.LogEntry, error) {
	docs, err := f.client.Collection(f.logs).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.logs, err)
	}
	out := make([]pins.LogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, pins.EntryFromDocument(d.Ref.ID, d.Data()))
	}
	return out, nil
}

// Ping issues a one-document read against the pins collection.
func (f *Firestore) Ping(ctx context.Context) error {
	it := f.client.Collection(f.pins).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}
