// Package scheduler runs CareRouter maintenance jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled task. Its context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler. Expressions use the standard five fields
// (min, hour, dom, month, dow) or a descriptor such as @daily or @every 1h.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel}
}

// AddJob schedules job under name. It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() {
		if err := job(s.ctx); err != nil {
			slog.Error("Scheduler job failed", "job", name, "error", err)
			return
		}
		slog.Debug("Scheduler job finished", "job", name)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", expr, name, err)
	}
	slog.Info("Scheduler job registered", "job", name, "schedule", expr)
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
