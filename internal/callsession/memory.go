package callsession

import (
	"context"
	"sync"
	"time"
	"voice-assistant/internal/observability"
)

type entry struct {
	// turn is a one slot semaphore serializing Update calls for the call.
	turn chan struct{}

	mu      sync.RWMutex
	session Session
	removed bool
}

func (e *entry) lock(ctx context.Context) error {
	select {
	case e.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) tryLock() bool {
	select {
	case e.turn <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) unlock() {
	<-e.turn
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
	metrics  *observability.CallMetrics
}

func NewMemoryStore(metrics *observability.CallMetrics) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
		metrics:  metrics,
	}
}

func (s *MemoryStore) entryFor(callSID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[callSID]
	if !ok {
		e = &entry{
			turn:    make(chan struct{}, 1),
			session: Session{CallSID: callSID, LastActivity: s.now()},
		}
		s.sessions[callSID] = e
		s.metrics.SetLiveSessions(len(s.sessions))
	}
	return e
}

func (s *MemoryStore) Update(ctx context.Context, callSID string, fn func(*Session) error) error {
	for {
		e := s.entryFor(callSID)
		retry, err := s.update(ctx, e, fn)
		if retry {
			// Reaped between lookup and lock, start over with a fresh entry.
			continue
		}
		return err
	}
}

func (s *MemoryStore) update(ctx context.Context, e *entry, fn func(*Session) error) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.unlock()

	e.mu.RLock()
	removed := e.removed
	working := e.session.Clone()
	e.mu.RUnlock()
	if removed {
		return true, nil
	}

	err := fn(&working)

	e.mu.Lock()
	if err == nil {
		e.session = working
	}
	e.session.LastActivity = s.now()
	e.mu.Unlock()
	return false, err
}

func (s *MemoryStore) Get(_ context.Context, callSID string) (Session, bool, error) {
	s.mu.Lock()
	e, ok := s.sessions[callSID]
	s.mu.Unlock()
	if !ok {
		return Session{}, false, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.removed {
		return Session{}, false, nil
	}
	return e.session.Clone(), true, nil
}

// Reap removes sessions idle for longer than idle and returns how many it removed.
// Sessions with an Update in flight are skipped.
func (s *MemoryStore) Reap(_ context.Context, idle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for callSID, e := range s.sessions {
		if !e.tryLock() {
			continue
		}
		e.mu.Lock()
		if e.session.LastActivity.Before(cutoff) {
			e.removed = true
			delete(s.sessions, callSID)
			removed++
		}
		e.mu.Unlock()
		e.unlock()
	}

	s.metrics.SetLiveSessions(len(s.sessions))
	return removed, nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
