package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// usernamePrefix is prepended to the account uid to form the broker username.
const usernamePrefix = "u_"

// CredentialSource derives device-scoped broker credentials from the
// account token. It implements printer.CredentialSource.
//
// The token is read from the token source on every call, so a refreshed
// token is picked up by the next reconnect.
type CredentialSource struct {
	userID string
	tokens oauth2.TokenSource
	now    func() time.Time
}

var _ printer.CredentialSource = (*CredentialSource)(nil)

// NewCredentialSource creates a credential source for the account userID.
func NewCredentialSource(userID string, tokens oauth2.TokenSource) *CredentialSource {
	return &CredentialSource{userID: userID, tokens: tokens, now: time.Now}
}

// Credentials returns "u_<uid>" and the current access token.
// A token whose exp claim has passed is refused with ErrTokenExpired.
func (s *CredentialSource) Credentials(_ context.Context) (printer.Credentials, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return printer.Credentials{}, fmt.Errorf("getting access token: %w", err)
	}
	if tok.AccessToken == "" {
		return printer.Credentials{}, ErrMissingToken
	}
	if exp, ok := TokenExpiry(tok.AccessToken); ok && !exp.After(s.now()) {
		return printer.Credentials{}, fmt.Errorf("%w at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}

	return printer.Credentials{
		Username: usernamePrefix + s.userID,
		Password: tok.AccessToken,
	}, nil
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. ok is false for opaque tokens and tokens without exp.
func TokenExpiry(accessToken string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}
