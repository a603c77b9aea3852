package callsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voice/audio"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrCreateOnce(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "CA1", func(s *Session) error {
				s.Append(RoleCaller, "hello")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
	session, ok, err := store.Get(ctx, "CA1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, session.History, 50)
	assert.Equal(t, "CA1", session.CallSID)
}

func TestMemoryStore_FailedUpdateIsNotCommitted(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	clip := audio.Clip{Data: []byte("first"), Format: audio.FormatWAV}
	require.NoError(t, store.Update(ctx, "CA1", func(s *Session) error {
		s.Append(RoleCaller, "hi")
		s.LastAudio = &clip
		return nil
	}))

	boom := errors.New("boom")
	err := store.Update(ctx, "CA1", func(s *Session) error {
		s.Append(RoleCaller, "lost")
		s.LastAudio.Data[0] = 'X'
		s.LastAudio = &audio.Clip{Data: []byte("second")}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	session, ok, err := store.Get(ctx, "CA1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, session.History, 1)
	assert.Equal(t, []byte("first"), session.LastAudio.Data)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "CA1", func(s *Session) error {
		s.Authenticate(User{ID: "u-1", DisplayName: "Asha"})
		s.Append(RoleCaller, "hi")
		return nil
	}))

	session, _, _ := store.Get(ctx, "CA1")
	session.History[0].Text = "changed"
	session.User.DisplayName = "changed"

	again, _, _ := store.Get(ctx, "CA1")
	assert.Equal(t, "hi", again.History[0].Text)
	assert.Equal(t, "Asha", again.User.DisplayName)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore(nil)

	_, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_GetDoesNotWaitOnUpdate(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "CA1", func(s *Session) error { return nil }))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Update(ctx, "CA1", func(s *Session) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	_, ok, err := store.Get(ctx, "CA1")
	require.NoError(t, err)
	assert.True(t, ok)

	close(release)
	<-done
}

func TestMemoryStore_UpdateHonorsContext(t *testing.T) {
	store := NewMemoryStore(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = store.Update(context.Background(), "CA1", func(s *Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.Update(ctx, "CA1", func(s *Session) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestMemoryStore_Reap(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewCallMetrics(reg)
	store := NewMemoryStore(metrics)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Update(ctx, "old", func(s *Session) error { return nil }))

	store.now = func() time.Time { return now.Add(20 * time.Minute) }
	require.NoError(t, store.Update(ctx, "fresh", func(s *Session) error { return nil }))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LiveSessions))

	removed, err := store.Reap(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, _ := store.Get(ctx, "old")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "fresh")
	assert.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LiveSessions))
}

func TestMemoryStore_ReapSkipsBusySessions(t *testing.T) {
	store := NewMemoryStore(nil)
	now := time.Now()
	store.now = func() time.Time { return now }

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Update(context.Background(), "busy", func(s *Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	store.now = func() time.Time { return now.Add(time.Hour) }
	removed, err := store.Reap(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	close(release)
	<-done
	assert.Equal(t, 1, store.Len())
}
