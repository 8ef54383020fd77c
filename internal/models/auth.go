package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/chartx/internal/shared"
)

// ExpiryLeeway is subtracted from a token's expiry before it is considered usable.
const ExpiryLeeway = 60 * time.Second

// Credentials holds the OAuth client identifier and secret for one session.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Validate reports [shared.ErrInvalidCredentials] when either value is blank or contains
// whitespace or control characters.
func (c Credentials) Validate() error {
	check := func(name, v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", shared.ErrInvalidCredentials, name)
		}
		for _, r := range v {
			if unicode.IsSpace(r) || unicode.IsControl(r) {
				return fmt.Errorf("%w: %s contains invalid characters", shared.ErrInvalidCredentials, name)
			}
		}
		return nil
	}

	if err := check("client id", c.ClientID); err != nil {
		return err
	}
	return check("client secret", c.ClientSecret)
}

// IsZero reports whether no credentials were supplied.
func (c Credentials) IsZero() bool {
	return c.ClientID == "" && c.ClientSecret == ""
}

// AuthState is the CSRF token issued with an authorize redirect.
type AuthState struct {
	CSRF     string
	IssuedAt time.Time
}

// TokenInfo is an access/refresh token pair. It is never mutated in place; refresh produces a new value.
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope,omitempty"`
}

// Expired reports whether the token is missing or within [ExpiryLeeway] of its expiry at now.
// A zero Expiry never expires.
func (t *TokenInfo) Expired(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(ExpiryLeeway).Before(t.Expiry)
}
