// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appctx "pharmaflow/internal/core/context"
	"pharmaflow/internal/core/security"
	"pharmaflow/pkg/logger"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	// Spec is a five-field cron expression or a descriptor such as "@every 30s"
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner. A job never overlaps with itself and a
// panicking job does not stop the others. Jobs run as the system actor.
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
	base context.Context
}

// New creates a scheduler. base carries the logger and is cancelled on shutdown.
func New(base context.Context, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	adapter := cronLogger{log: log.WithComponent("scheduler")}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(adapter),
			cron.SkipIfStillRunning(adapter),
		), cron.WithLogger(adapter)),
		log:  log,
		base: base,
	}
}

// Add registers job.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has no Run func", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.RunNow(job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.log.Infow("job scheduled", "job", job.Name, "spec", job.Spec)
	return nil
}

// RunNow runs job once on the calling goroutine.
func (s *Scheduler) RunNow(job Job) error {
	ctx := appctx.WithTrace(s.base, appctx.NewTraceContext("", ""))
	ctx = security.WithSystemActor(logger.WithLogger(ctx, s.log))
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.Error(ctx, "job failed", "job", job.Name, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return err
	}
	logger.Debug(ctx, "job finished", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")
	s.cron.Start()
}

// Stop stops firing schedules and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.log.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
