package processor

import (
	"context"
	"voice-assistant/internal/callsession"
	"voice-assistant/internal/store"
	"voice-assistant/internal/voice/audio"
)

// Authenticator resolves a PIN to a profile, returning nil when nothing matches.
type Authenticator interface {
	Authenticate(ctx context.Context, pin string) *store.UserProfile
}

// RecordingFetcher downloads the caller's recorded utterance.
type RecordingFetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// Transcriber turns speech into text and reports the spoken language.
type Transcriber interface {
	Transcribe(ctx context.Context, recording []byte) (string, string, error)
}

// Reasoner produces the assistant's next utterance. It never fails.
type Reasoner interface {
	Respond(ctx context.Context, utterance string, history []callsession.Turn) string
}

// Translator converts the reasoning output into the caller's language. It never fails.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) string
}

// Synthesizer converts text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) (audio.Clip, error)
}

// EventPublisher emits call lifecycle events.
type EventPublisher interface {
	PublishCallAuthenticated(ctx context.Context, callSID, userID string)
	PublishTurnCompleted(ctx context.Context, callSID, languageCode string, turn int)
}
