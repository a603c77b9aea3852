package jobs

import (
	"context"
	"fmt"
	"time"
	"voice-assistant/internal/observability"
)

// SessionReaper drops call sessions that have been idle for longer than a threshold.
type SessionReaper interface {
	Reap(ctx context.Context, idle time.Duration) (int, error)
}

// SessionReaperJob evicts abandoned calls from the in-memory session store.
type SessionReaperJob struct {
	sessions SessionReaper
	logger   *observability.Logger
	idle     time.Duration
	interval time.Duration
}

func NewSessionReaperJob(sessions SessionReaper, logger *observability.Logger, idle, interval time.Duration) *SessionReaperJob {
	if interval == 0 {
		interval = time.Minute
	}
	return &SessionReaperJob{
		sessions: sessions,
		logger:   logger,
		idle:     idle,
		interval: interval,
	}
}

func (j *SessionReaperJob) Name() string {
	return "session_reaper"
}

func (j *SessionReaperJob) Schedule() time.Duration {
	return j.interval
}

func (j *SessionReaperJob) Run(ctx context.Context) error {
	removed, err := j.sessions.Reap(ctx, j.idle)
	if err != nil {
		return fmt.Errorf("failed to reap idle sessions: %w", err)
	}
	if removed > 0 {
		j.logger.Info(observability.WithFields(ctx, observability.Field{Key: "removed", Value: removed}), "Reaped idle call sessions")
	}
	return nil
}
