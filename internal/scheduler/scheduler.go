// Package scheduler runs the periodic month close on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"oyken/internal/log"
)

// Job is what a tick runs; the rollup worker's CloseRecent satisfies it.
type Job interface {
	CloseRecent(ctx context.Context, now time.Time) error
}

// Scheduler closes recent months at every tick of a standard 5-field cron
// expression evaluated in loc.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	job      Job
	logger   *log.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New parses spec and prepares the scheduler. Start must be called to run it.
func New(spec string, loc *time.Location, job Job, logger *log.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse close schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		loc:      loc,
		job:      job,
		logger:   logger.WithComponent(log.ComponentScheduler),
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins running ticks in the background until ctx ends or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "next_run", s.Next(time.Now()).Format(time.RFC3339))

	go func(ctx context.Context) {
		<-ctx.Done()
		s.Stop()
	}(s.ctx)
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs the job once, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx, time.Now().In(s.loc))
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = s.run(ctx, time.Now().In(s.loc))
}

func (s *Scheduler) run(ctx context.Context, now time.Time) error {
	start := time.Now()
	s.logger.InfoContext(ctx, "Running scheduled close", log.FieldOperation, log.OpClose)
	if err := s.job.CloseRecent(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled close failed", log.FieldOperation, log.OpClose, log.FieldError, err)
		return err
	}
	s.logger.InfoContext(ctx, "Scheduled close complete",
		log.FieldOperation, log.OpClose,
		"duration_ms", time.Since(start).Milliseconds(),
		"next_run", s.Next(now).Format(time.RFC3339))
	return nil
}
