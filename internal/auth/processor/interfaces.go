package processor

import (
	"context"
	"voice-assistant/internal/store"
)

// ProfileStore defines the database operations required by PINAuthenticator
type ProfileStore interface {
	GetUserProfileByPIN(ctx context.Context, pin string) (store.UserProfile, error)
}
