package pins

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// Field names shared by every backend.
const (
	FieldLastUpdated = "lastUpdated"
	FieldImageURL    = "imageUrl"
)

// Pin is a user-created marker as stored in the pins collection.
// Data holds every stored field, including lastUpdated and imageUrl.
type Pin struct {
	ID          string
	LastUpdated time.Time
	Data        map[string]any
}

// ImageURL returns the pin's image reference, if any.
func (p Pin) ImageURL() (string, bool) {
	v, ok := p.Data[FieldImageURL].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ImagePath returns the decoded storage path embedded in the pin's image URL.
func (p Pin) ImagePath() (string, bool) {
	u, ok := p.ImageURL()
	if !ok {
		return "", false
	}
	return ObjectPath(u)
}

// ObjectPath extracts the object name from a download URL of the form
// ".../o/<escaped path>?<query>". The segment must be non-empty.
func ObjectPath(imageURL string) (string, bool) {
	i := strings.Index(imageURL, "/o/")
	if i < 0 {
		return "", false
	}
	rest := imageURL[i+len("/o/"):]
	j := strings.Index(rest, "?")
	if j <= 0 {
		return "", false
	}
	p, err := url.PathUnescape(rest[:j])
	if err != nil || p == "" {
		return "", false
	}
	return p, true
}

// LogEntry is the redacted copy of a deleted pin.
type LogEntry struct {
	ID        string
	Timestamp string
	PinID     string
	Fields    map[string]any
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Keys generated for every log entry. A pin field with one of these names is
// kept under a "pin_" prefix.
const (
	keyID        = "id"
	keyTimestamp = "timestamp"
	keyPinID     = "pinId"
)

// NewLogEntry copies every field of p except imageUrl.
func NewLogEntry(p Pin, deletedAt time.Time) LogEntry {
	fields := make(map[string]any, len(p.Data))
	for k, v := range p.Data {
		if k != FieldImageURL && !reserved(k) {
			fields[k] = v
		}
	}
	for k, v := range p.Data {
		if !reserved(k) {
			continue
		}
		name := "pin_" + k
		for {
			if _, taken := fields[name]; !taken {
				break
			}
			name = "pin_" + name
		}
		fields[name] = v
	}
	ts := FormatTimestamp(deletedAt)
	return LogEntry{ID: ts, Timestamp: ts, PinID: p.ID, Fields: fields}
}

// Document returns the flat representation written to log collections.
// Generated keys take precedence over Fields of the same name; entries built
// by NewLogEntry never carry such fields.
func (e LogEntry) Document() map[string]any {
	doc := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		doc[k] = v
	}
	if e.ID != "" {
		doc[keyID] = e.ID
	}
	if e.Timestamp != "" {
		doc[keyTimestamp] = e.Timestamp
	}
	if e.PinID != "" {
		doc[keyPinID] = e.PinID
	}
	return doc
}

// MarshalJSON flattens the entry into a single object.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Document())
}

// UnmarshalJSON accepts the flat object produced by MarshalJSON.
func (e *LogEntry) UnmarshalJSON(b []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*e = EntryFromDocument("", doc)
	return nil
}

// EntryFromDocument rebuilds an entry from a stored document. A non-empty
// docID overrides any id field in the document.
func EntryFromDocument(docID string, doc map[string]any) LogEntry {
	e := LogEntry{Fields: make(map[string]any, len(doc))}
	for k, v := range doc {
		switch k {
		case keyID:
			e.ID, _ = v.(string)
		case keyTimestamp:
			e.Timestamp, _ = v.(string)
		case keyPinID:
			e.PinID, _ = v.(string)
		default:
			e.Fields[k] = v
		}
	}
	if docID != "" {
		e.ID = docID
	}
	return e
}

func reserved(k string) bool {
	return k == keyID || k == keyTimestamp || k == keyPinID
}

// DocumentID converts a timestamp into a collection-safe identifier.
func DocumentID(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000000000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}
