// Package scheduler runs a job immediately and then on a fixed interval
// until the context is cancelled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrShutdownTimeout is returned when a running job outlives the shutdown timeout
var ErrShutdownTimeout = errors.New("scheduler: shutdown timed out waiting for running job")

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }
func (j funcJob) Name() string                  { return j.name }

// NewJob wraps fn as a named Job
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Scheduler manages a single interval job
type Scheduler struct {
	cron            *cron.Cron
	interval        time.Duration
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// New creates a new scheduler
func New(interval, shutdownTimeout time.Duration) *Scheduler {
	log := slog.With("component", "scheduler")
	return &Scheduler{
		cron:            cron.New(cron.WithLogger(cronLogger{log: log})),
		interval:        interval,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// Run executes job once right away and then every interval. A tick that
// arrives while the previous run is still going is skipped. Run blocks until
// ctx is done and returns after the in-flight run finishes or the shutdown
// timeout elapses.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s", s.interval)
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: s.log})).
		Then(cron.FuncJob(func() { s.runJob(ctx, job) }))

	s.cron.Schedule(cron.Every(s.interval), wrapped)
	s.log.Info("Job registered", "job", job.Name(), "interval", s.interval)

	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		s.log.Info("Running job immediately", "job", job.Name())
		wrapped.Run()
	}()

	s.cron.Start()
	s.log.Info("Scheduler started")

	<-ctx.Done()
	return s.stop(&first)
}

func (s *Scheduler) stop(first *sync.WaitGroup) error {
	stopped := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		first.Wait()
		close(stopped)
	}()

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopped:
		s.log.Info("Scheduler stopped")
		return nil
	case <-timer.C:
		s.log.Warn("Scheduler stop timed out", "timeout", s.shutdownTimeout)
		return ErrShutdownTimeout
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.log.Debug("Running job", "job", job.Name())

	if err := job.Run(ctx); err != nil {
		s.log.Error("Job failed", "job", job.Name(), "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debug("Job completed", "job", job.Name(), "duration", time.Since(start))
}

// cronLogger adapts slog to the cron.Logger interface.
// cron reports every wake-up through Info, so it is logged at debug level.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
