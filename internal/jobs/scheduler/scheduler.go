package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"voice-assistant/internal/observability"

	"golang.org/x/sync/errgroup"
)

// Job represents a scheduled job
type Job interface {
	// Name returns the job name for logging
	Name() string
	// Run executes the job
	Run(ctx context.Context) error
	// Schedule returns the interval between runs
	Schedule() time.Duration
}

// Scheduler runs registered jobs on their own interval until its context ends.
type Scheduler struct {
	jobs   []Job
	logger *observability.Logger
}

func New(logger *observability.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make([]Job, 0),
		logger: logger,
	}
}

// Register adds a job to the scheduler. Jobs without a positive interval are skipped.
func (s *Scheduler) Register(job Job) {
	ctx := observability.WithFields(context.Background(),
		observability.Field{Key: "scheduled_job", Value: job.Name()},
		observability.Field{Key: "interval", Value: job.Schedule().String()},
	)
	if job.Schedule() <= 0 {
		s.logger.Warn(ctx, "Scheduled job has no interval, not registering")
		return
	}
	s.jobs = append(s.jobs, job)
	s.logger.Info(ctx, "Registered scheduled job")
}

// Start runs every job and blocks until ctx is cancelled and all job loops have returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(ctx, fmt.Sprintf("Starting scheduler with %d jobs", len(s.jobs)))

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.runJob(gctx, job)
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info(ctx, "Scheduler stopped")
	if err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	jobCtx := observability.WithFields(ctx, observability.Field{Key: "scheduled_job", Value: job.Name()})

	ticker := time.NewTicker(job.Schedule())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug(jobCtx, "Stopping scheduled job")
			return
		case <-ticker.C:
			s.executeJob(jobCtx, job)
		}
	}
}

// executeJob runs one iteration. A failing or panicking run never stops the loop.
func (s *Scheduler) executeJob(ctx context.Context, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "Recovered from panic in scheduled job", fmt.Errorf("reason: %+v", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error(observability.WithFields(ctx, observability.Field{Key: "duration", Value: time.Since(start).String()}),
			"Scheduled job failed", err)
		return
	}
	s.logger.Debug(observability.WithFields(ctx, observability.Field{Key: "duration", Value: time.Since(start).String()}),
		"Scheduled job completed")
}
