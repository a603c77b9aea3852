package callsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	redisclient "voice-assistant/internal/clients/redis"
	"voice-assistant/internal/observability"

	"github.com/google/uuid"
)

const (
	sessionKeyPrefix = "voice:session:"
	lockKeyPrefix    = "voice:session-lock:"

	defaultLockPollInterval = 50 * time.Millisecond
)

// RedisStore keeps sessions in Redis so several instances can serve the same call.
// Per-call serialization uses a SET NX lock released with compare-and-delete.
type RedisStore struct {
	kv           KeyValueStore
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
	now          func() time.Time
	logger       *observability.Logger
}

// NewRedisStore creates a store whose keys expire ttl after the last write.
// lockTTL bounds how long a crashed holder can block a call and should exceed the turn timeout.
func NewRedisStore(kv KeyValueStore, ttl, lockTTL time.Duration, logger *observability.Logger) *RedisStore {
	return &RedisStore{
		kv:           kv,
		ttl:          ttl,
		lockTTL:      lockTTL,
		pollInterval: defaultLockPollInterval,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *RedisStore) acquire(ctx context.Context, callSID string) (string, error) {
	token := uuid.NewString()
	for {
		ok, err := s.kv.SetNX(ctx, lockKeyPrefix+callSID, token, s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *RedisStore) release(ctx context.Context, callSID, token string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.kv.CompareAndDelete(ctx, lockKeyPrefix+callSID, token); err != nil {
		s.logger.Error(ctx, "failed to release session lock", err)
	}
}

func (s *RedisStore) load(ctx context.Context, callSID string) (Session, bool, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+callSID)
	if err != nil {
		if errors.Is(err, redisclient.ErrKeyNotFound) {
			return Session{CallSID: callSID}, false, nil
		}
		return Session{}, false, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, false, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, true, nil
}

func (s *RedisStore) save(ctx context.Context, session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+session.CallSID, string(raw), s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, callSID string, fn func(*Session) error) error {
	token, err := s.acquire(ctx, callSID)
	if err != nil {
		return err
	}
	defer s.release(ctx, callSID, token)

	committed, _, err := s.load(ctx, callSID)
	if err != nil {
		return err
	}

	working := committed.Clone()
	fnErr := fn(&working)
	if fnErr != nil {
		working = committed
	}
	working.LastActivity = s.now()

	// Saving after a failed fn only refreshes activity and the key TTL.
	if err := s.save(context.WithoutCancel(ctx), working); err != nil {
		if fnErr != nil {
			return errors.Join(fnErr, err)
		}
		return err
	}
	return fnErr
}

func (s *RedisStore) Get(ctx context.Context, callSID string) (Session, bool, error) {
	session, ok, err := s.load(ctx, callSID)
	if err != nil || !ok {
		return Session{}, false, err
	}
	return session, true, nil
}
