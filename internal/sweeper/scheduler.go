package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/metrics"
)

// DefaultSchedule fires daily at 01:00 local time.
const DefaultSchedule = "0 1 * * *"

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context)
}

// Scheduler runs a Job on a cron schedule. A fire that arrives while the
// previous run is still going is skipped. Missed fires are not caught up.
type Scheduler struct {
	job      Job
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	entry    cron.EntryID
	running  bool
	manual   sync.WaitGroup
}

// NewScheduler creates a scheduler. An empty schedule uses DefaultSchedule;
// a nil loc uses the local timezone.
func NewScheduler(job Job, schedule string, loc *time.Location) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log.With().Str("component", "scheduler").Logger()}
	return &Scheduler{
		job:      job,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start validates the schedule and begins firing. The context is handed to
// every run and stops the scheduler when cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	id, err := s.cron.AddFunc(s.schedule, func() {
		log.Info().Msg("running scheduled auto-delete")
		s.job.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.running = true

	log.Info().Str("schedule", s.schedule).Time("next_run", s.cron.Entry(id).Next).Msg("sweep scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Trigger runs the job now through the same skip-if-running guard as
// scheduled fires. It returns immediately.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	e := s.cron.Entry(s.entry)
	if e.WrappedJob == nil {
		return false
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		e.WrappedJob.Run()
	}()
	return true
}

// Stop stops the scheduler and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.manual.Wait()
	s.running = false
	log.Info().Msg("sweep scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next fire time, or nil when not started.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	return &next
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	if msg == "skip" {
		metrics.ObserveSweep("skipped", 0)
		c.l.Warn().Msg("previous sweep still running, skipping")
		return
	}
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
