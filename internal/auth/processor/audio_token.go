package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidAudioToken = errors.New("invalid audio token")

const audioTokenIssuer = "voice-assistant"

// AudioTokenSigner issues short lived tokens that scope an audio URL to one call.
// A signer with an empty secret is disabled: Sign returns "" and Verify accepts anything.
type AudioTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAudioTokenSigner(secret string, ttl time.Duration) *AudioTokenSigner {
	return &AudioTokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *AudioTokenSigner) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

func (s *AudioTokenSigner) Sign(callSID string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    audioTokenIssuer,
		Subject:   callSID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign audio token: %w", err)
	}
	return token, nil
}

// Verify checks that token is valid, unexpired and was issued for callSID.
func (s *AudioTokenSigner) Verify(token, callSID string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return ErrInvalidAudioToken
	}

	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(audioTokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return ErrInvalidAudioToken
	}
	if claims.Subject != callSID {
		return ErrInvalidAudioToken
	}
	return nil
}
