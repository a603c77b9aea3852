package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	"voice-assistant/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	interval time.Duration
	runs     atomic.Int32
	err      error
	panics   bool
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Schedule() time.Duration { return j.interval }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.panics {
		panic("job exploded")
	}
	return j.err
}

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	s := New(observability.NewLogger())
	ok := &countingJob{name: "ok", interval: 5 * time.Millisecond}
	failing := &countingJob{name: "failing", interval: 5 * time.Millisecond, err: errors.New("boom")}
	panicking := &countingJob{name: "panicking", interval: 5 * time.Millisecond, panics: true}
	s.Register(ok)
	s.Register(failing)
	s.Register(panicking)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return ok.runs.Load() >= 2 && failing.runs.Load() >= 2 && panicking.runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_SkipsJobsWithoutInterval(t *testing.T) {
	s := New(observability.NewLogger())
	s.Register(&countingJob{name: "never"})

	assert.Empty(t, s.jobs)
}
