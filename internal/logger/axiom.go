package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	shipBuffer   = 1000
	shipMaxBatch = 200
	shipTimeout  = 15 * time.Second
)

// ingester is the part of *axiom.Client the shipper uses.
type ingester interface {
	IngestEvents(ctx context.Context, id string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

func newAxiomSink(token, orgID string) (*axiom.Client, error) {
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	return axiom.NewClient(opts...)
}

// shipper is an io.Writer that batches zerolog lines into Axiom events.
// Debug and trace lines are not shipped. Lines arriving while the buffer is
// full are dropped and counted.
type shipper struct {
	sink     ingester
	dataset  string
	service  string
	every    time.Duration
	maxBatch int

	events  chan axiom.Event
	dropped atomic.Int64
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newShipper(sink ingester, dataset, service string, every time.Duration) *shipper {
	if every <= 0 {
		every = 10 * time.Second
	}
	s := &shipper{
		sink:     sink,
		dataset:  dataset,
		service:  service,
		every:    every,
		maxBatch: shipMaxBatch,
		events:   make(chan axiom.Event, shipBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *shipper) Write(p []byte) (int, error) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	switch ev["level"] {
	case "debug", "trace":
		return len(p), nil
	}
	if _, ok := ev["service"]; !ok {
		ev["service"] = s.service
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}

	select {
	case s.events <- axiom.Event(ev):
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

func (s *shipper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, s.maxBatch)
	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= s.maxBatch {
				batch = s.flush(batch)
			}
		case <-ticker.C:
			batch = s.flush(batch)
		case <-s.stop:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					s.flush(batch)
					return
				}
			}
		}
	}
}

func (s *shipper) flush(batch []axiom.Event) []axiom.Event {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
	defer cancel()
	if _, err := s.sink.IngestEvents(ctx, s.dataset, batch); err != nil {
		// the logger cannot log its own failures
		fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
	}
	return batch[:0]
}

// Close drains buffered lines and waits for the final ingest.
func (s *shipper) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	if n := s.dropped.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "axiom dropped %d log lines\n", n)
	}
	return nil
}
