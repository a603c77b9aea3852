// Package callsession keeps per-call state between webhook events.
//
// A Store serializes mutations per call SID and commits them only when the
// mutation function succeeds, so a failed turn never leaves a session half written.
package callsession

//go:generate go run go.uber.org/mock/mockgen@latest -source=session.go -destination=mocks_test.go -package=callsession

import (
	"context"
	"time"
	"voice-assistant/internal/voice/audio"
)

type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// User is the authenticated caller.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Session is the state of a single call.
type Session struct {
	CallSID       string      `json:"call_sid"`
	Authenticated bool        `json:"authenticated"`
	User          *User       `json:"user,omitempty"`
	History       []Turn      `json:"history"`
	LastAudio     *audio.Clip `json:"last_audio,omitempty"`
	LastActivity  time.Time   `json:"last_activity"`
}

// Authenticate marks the session authenticated for user. It never reverts.
func (s *Session) Authenticate(user User) {
	s.Authenticated = true
	s.User = &user
}

// Append adds a turn to the history.
func (s *Session) Append(role Role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})
}

// Clone returns a deep copy that shares no memory with s.
func (s Session) Clone() Session {
	out := s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.History != nil {
		out.History = make([]Turn, len(s.History))
		copy(out.History, s.History)
	}
	if s.LastAudio != nil {
		clip := audio.Clip{Format: s.LastAudio.Format}
		clip.Data = append([]byte(nil), s.LastAudio.Data...)
		out.LastAudio = &clip
	}
	return out
}

// Store holds sessions keyed by call SID.
type Store interface {
	// Update loads or creates the session for callSID and runs fn on a private copy while
	// holding the per-call lock. The copy is committed only if fn returns nil.
	Update(ctx context.Context, callSID string, fn func(*Session) error) error
	// Get returns a copy of the committed session without waiting on a running Update.
	Get(ctx context.Context, callSID string) (Session, bool, error)
}

// KeyValueStore is the subset of the Redis client the RedisStore needs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}
