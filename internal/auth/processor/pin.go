package processor

//go:generate go run go.uber.org/mock/mockgen@latest -source=interfaces.go -destination=mocks_test.go -package=processor

import (
	"context"
	"errors"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/store"
)

// PINAuthenticator matches a caller supplied PIN against the profile store.
type PINAuthenticator struct {
	store  ProfileStore
	logger *observability.Logger
}

func NewPINAuthenticator(store ProfileStore, logger *observability.Logger) *PINAuthenticator {
	return &PINAuthenticator{store: store, logger: logger}
}

// Authenticate returns the matching profile, or nil when no profile matches.
// Store faults are logged and reported as no match so the caller is simply reprompted.
func (a *PINAuthenticator) Authenticate(ctx context.Context, pin string) *store.UserProfile {
	if pin == "" {
		return nil
	}

	profile, err := a.store.GetUserProfileByPIN(ctx, pin)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Info(ctx, "no profile matched pin")
			return nil
		}
		a.logger.Error(ctx, "failed to look up profile by pin", err)
		return nil
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: profile.ID})
	a.logger.Info(ctx, "caller authenticated")
	return &profile
}
