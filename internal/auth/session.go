package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// Status is the position of a [Session] in the authorization state machine.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAwaitingCallback
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingCallback:
		return "awaiting_callback"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session owns one user's credentials, pending state and token.
type Session struct {
	mu       sync.Mutex
	provider *Provider
	logger   *log.Logger
	creds    models.Credentials
	state    *models.AuthState
	token    *models.TokenInfo
}

// NewSession creates an unauthenticated session backed by provider.
func NewSession(provider *Provider, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Session{provider: provider, logger: logger}
}

// Begin stores creds, issues a new state and returns the authorize URL.
//
// Any previous token is discarded.
func (s *Session) Begin(creds models.Credentials) (string, error) {
	url, state, err := s.provider.Begin(creds)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = creds
	s.state = state
	s.token = nil
	return url, nil
}

// State returns the pending CSRF token, or "" when no authorization is in flight.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return ""
	}
	return s.state.CSRF
}

// Complete handles the provider callback. The pending state is consumed whatever the outcome.
func (s *Session) Complete(ctx context.Context, received, code, providerErr string) (*models.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := s.state
	s.state = nil

	token, err := s.provider.Complete(ctx, s.creds, received, expected, code, providerErr)
	if err != nil {
		if errors.Is(err, shared.ErrStateMismatch) || errors.Is(err, shared.ErrProviderDenied) || errors.Is(err, shared.ErrExchangeFailed) {
			s.creds = models.Credentials{}
		}
		s.token = nil
		s.logger.Warn("authorization failed", "error", err)
		return nil, err
	}

	s.token = token
	s.logger.Debug("authorization complete", "scope", token.Scope, "expiry", token.Expiry)
	return token, nil
}

// Token returns a usable token, refreshing it under the session lock when needed.
func (s *Session) Token(ctx context.Context) (*models.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.provider.UsableToken(ctx, s.token, s.creds)
	if err != nil {
		if errors.Is(err, shared.ErrRefreshFailed) {
			s.logger.Warn("token refresh failed", "error", err)
			s.creds = models.Credentials{}
			s.token = nil
		}
		return nil, err
	}

	if token != s.token {
		s.logger.Debug("token refreshed", "expiry", token.Expiry)
		s.token = token
	}
	return token, nil
}

// AccessToken implements services.TokenSource.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// SetToken installs a token obtained elsewhere, such as a stored CLI token.
func (s *Session) SetToken(creds models.Credentials, token *models.TokenInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = creds
	s.state = nil
	s.token = token
}

// Status reports where the session is in the flow.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.token != nil:
		return StatusAuthenticated
	case s.state != nil:
		return StatusAwaitingCallback
	default:
		return StatusUnauthenticated
	}
}

// Reset returns the session to [StatusUnauthenticated].
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = models.Credentials{}
	s.state = nil
	s.token = nil
}

// Abandon drops a pending authorization without touching credentials or token.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = nil
}
