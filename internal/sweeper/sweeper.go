// Package sweeper periodically deletes expired links.
//
// Ticks are driven by a seconds-resolution cron expression. A tick that fires
// while the previous sweep is still running is skipped, and a failed or
// panicking sweep is logged without affecting later ticks.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule fires at second 1 of every minute.
	DefaultSchedule = "1/60 * * * * *"
	DefaultTimeout  = 30 * time.Second
)

type Store interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	store    Store
	logger   *slog.Logger
	schedule string
	timeout  time.Duration
	now      func() time.Time

	cron *cron.Cron
	job  cron.Job
}

// New builds a sweeper. A zero timeout leaves the delete unbounded.
func New(store Store, schedule string, timeout time.Duration, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Sweeper{
		store:    store,
		logger:   logger,
		schedule: schedule,
		timeout:  timeout,
		now:      time.Now,
	}
	cl := cronLogger{logger: logger}
	s.cron = cron.New(cron.WithSeconds(), cron.WithLogger(cl))
	// Recover sits inside the skip guard so a panic cannot leak its run token.
	s.job = cron.NewChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)).Then(cron.FuncJob(s.tick))
	return s
}

// Start registers the sweep job and starts the scheduler in the background.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddJob(s.schedule, s.job); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("expiry sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Job is the scheduled unit: a sweep guarded against overlap and panics.
func (s *Sweeper) Job() cron.Job {
	return s.job
}

func (s *Sweeper) tick() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
	}
}

// Sweep deletes every link whose expiration has passed and returns the count.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	deleted, err := s.store.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired links: %w", err)
	}
	s.logger.Debug("expired links deleted", "deleted", deleted, "duration", time.Since(start))
	return deleted, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
