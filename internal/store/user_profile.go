package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserProfile is the caller record a PIN resolves to.
type UserProfile struct {
	ID          string         `db:"id"`
	DisplayName sql.NullString `db:"full_name"`
}

// Name returns the display name, empty when the profile has none.
func (u UserProfile) Name() string {
	if u.DisplayName.Valid {
		return u.DisplayName.String
	}
	return ""
}

const sqlGetUserProfileByPIN = `
SELECT id::text AS id, full_name
FROM user_profiles
WHERE pin = $1
LIMIT 1`

// GetUserProfileByPIN returns the first profile whose PIN equals pin, or ErrNotFound.
func (s *Store) GetUserProfileByPIN(ctx context.Context, pin string) (UserProfile, error) {
	var profile UserProfile
	err := s.db.GetContext(ctx, &profile, sqlGetUserProfileByPIN, pin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get user profile by pin", err)
		return UserProfile{}, fmt.Errorf("failed to get user profile by pin: %w", err)
	}
	return profile, nil
}
