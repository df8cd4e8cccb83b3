package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/pinsweeper/internal/auditlog"
	"github.com/local/pinsweeper/internal/metrics"
	"github.com/local/pinsweeper/internal/pins"
	"github.com/local/pinsweeper/internal/storage"
)

// DefaultRetention is how long a pin may go without an update.
const DefaultRetention = 30 * 24 * time.Hour

// ErrAuditIncomplete means some stale pins were kept because their deletion
// could not be recorded in the local log.
var ErrAuditIncomplete = errors.New("local audit log unavailable")

type PinStore interface {
	StalePins(ctx context.Context, cutoff time.Time) ([]pins.Pin, error)
	DeletePin(ctx context.Context, id string) error
}

type BlobStore interface {
	Delete(ctx context.Context, path string) error
}

type Recorder interface {
	Record(ctx context.Context, e pins.LogEntry) auditlog.Outcome
}

type Dependencies struct {
	Pins  PinStore
	Blobs BlobStore
	Audit Recorder
}

type Config struct {
	Retention time.Duration
	// Timeout bounds a single Run. Zero means no deadline.
	Timeout time.Duration
}

// Result summarises one sweep.
type Result struct {
	RunID          string
	Cutoff         time.Time
	Matched        int
	Deleted        int
	ImagesDeleted  int
	ImagesMissing  int
	ImageFailures  int
	RemoteLogFails int
	LocalLogFails  int
	Retained       int
	Duration       time.Duration
}

type Sweeper struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time
}

func New(cfg Config, deps Dependencies) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Sweeper{deps: deps, cfg: cfg, now: time.Now}
}

// Sweep deletes every pin last updated before now minus the retention period.
//
// Each pin is handled on its own: its image is deleted if one can be located,
// a redacted copy is recorded, and the pin is queued. Image and remote log
// failures are logged and do not stop the pin from being deleted. A pin whose
// local log entry could not be written is kept for the next run and the sweep
// reports ErrAuditIncomplete. Queued pins are deleted concurrently once every
// match has been recorded.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	start := s.now()
	res := Result{RunID: uuid.NewString(), Cutoff: start.Add(-s.cfg.Retention)}
	logger := log.With().Str("run_id", res.RunID).Logger()

	stale, err := s.deps.Pins.StalePins(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("query stale pins: %w", err)
	}
	res.Matched = len(stale)
	if len(stale) == 0 {
		logger.Info().Time("cutoff", res.Cutoff).Msg("no outdated pins found")
		res.Duration = s.now().Sub(start)
		return res, nil
	}
	logger.Info().Int("matched", len(stale)).Time("cutoff", res.Cutoff).Msg("outdated pins found")

	queued := make([]string, 0, len(stale))
	for _, p := range stale {
		s.deleteImage(ctx, &res, p)

		out := s.deps.Audit.Record(ctx, pins.NewLogEntry(p, s.now()))
		if out.RemoteErr != nil {
			res.RemoteLogFails++
		}
		if out.LocalErr != nil {
			res.LocalLogFails++
			res.Retained++
			logger.Error().Err(out.LocalErr).Str("pin_id", p.ID).Msg("deletion not logged locally, keeping pin")
			continue
		}

		queued = append(queued, p.ID)
	}

	var g errgroup.Group
	deleted := make([]bool, len(queued))
	for i, id := range queued {
		i, id := i, id
		g.Go(func() error {
			if err := s.deps.Pins.DeletePin(ctx, id); err != nil {
				return err
			}
			deleted[i] = true
			return nil
		})
	}
	err = g.Wait()
	for _, ok := range deleted {
		if ok {
			res.Deleted++
		}
	}
	metrics.AddPinsDeleted(res.Deleted)
	res.Duration = s.now().Sub(start)

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("delete pins (%d of %d deleted): %w", res.Deleted, len(queued), err))
	}
	if res.Retained > 0 {
		errs = append(errs, fmt.Errorf("%d pin(s) kept: %w", res.Retained, ErrAuditIncomplete))
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	logger.Info().
		Int("deleted", res.Deleted).
		Int("images_deleted", res.ImagesDeleted).
		Int("image_failures", res.ImageFailures).
		Int("remote_log_failures", res.RemoteLogFails).
		Dur("duration", res.Duration).
		Msgf("deleted %d pin(s) and image(s)", res.Deleted)
	return res, nil
}

func (s *Sweeper) deleteImage(ctx context.Context, res *Result, p pins.Pin) {
	raw, ok := p.ImageURL()
	if !ok {
		return
	}
	path, ok := pins.ObjectPath(raw)
	if !ok {
		metrics.IncImageDelete("skipped")
		log.Warn().Str("pin_id", p.ID).Str("image_url", raw).Msg("image url has no object path, skipping image")
		return
	}
	if err := s.deps.Blobs.Delete(ctx, path); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			res.ImagesMissing++
			metrics.IncImageDelete("missing")
			log.Info().Str("pin_id", p.ID).Str("path", path).Msg("image already absent")
			return
		}
		res.ImageFailures++
		metrics.IncImageDelete("failed")
		log.Warn().Err(err).Str("pin_id", p.ID).Str("path", path).Msg("failed to delete image")
		return
	}
	res.ImagesDeleted++
	metrics.IncImageDelete("deleted")
	log.Info().Str("pin_id", p.ID).Str("path", path).Msg("deleted image")
}

// Run is the catch-all wrapper used by the scheduler. Errors and panics are
// logged; the next scheduled run retries.
func (s *Sweeper) Run(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveSweep("error", time.Since(start))
			log.Error().Interface("panic", r).Msg("sweep panicked")
		}
	}()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := s.Sweep(ctx)
	if err != nil {
		metrics.ObserveSweep("error", time.Since(start))
		log.Error().Err(err).Str("run_id", res.RunID).Msg("error deleting pins")
		return
	}
	metrics.ObserveSweep("success", time.Since(start))
}
