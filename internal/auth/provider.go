package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested from Spotify. Creating and filling a private playlist needs both modify scopes.
var Scopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
}

// SpotifyEndpoint is the accounts service endpoint. Spotify expects client credentials in the
// Authorization header.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:   spotifyAuthURL,
	TokenURL:  spotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Provider performs the stateless parts of the authorization-code flow.
type Provider struct {
	endpoint    oauth2.Endpoint
	redirectURL string
	scopes      []string
	httpClient  *http.Client
	now         func() time.Time
}

// ProviderOption configures a [Provider].
type ProviderOption func(*Provider)

// WithEndpoint overrides the authorize and token URLs.
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(p *Provider) { p.endpoint = e }
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.httpClient = c }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// WithScopes overrides [Scopes].
func WithScopes(scopes ...string) ProviderOption {
	return func(p *Provider) { p.scopes = scopes }
}

// NewProvider creates a Provider that redirects back to redirectURL.
func NewProvider(redirectURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		endpoint:    SpotifyEndpoint,
		redirectURL: redirectURL,
		scopes:      Scopes,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RedirectURL returns the callback URL registered with the provider.
func (p *Provider) RedirectURL() string {
	return p.redirectURL
}

func (p *Provider) config(creds models.Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  p.redirectURL,
		Scopes:       p.scopes,
		Endpoint:     p.endpoint,
	}
}

func (p *Provider) context(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Begin validates creds and returns the authorize URL along with the state the callback must echo.
func (p *Provider) Begin(creds models.Credentials) (string, *models.AuthState, error) {
	if err := creds.Validate(); err != nil {
		return "", nil, err
	}

	csrf, err := shared.GenerateState()
	if err != nil {
		return "", nil, err
	}

	state := &models.AuthState{CSRF: csrf, IssuedAt: p.now()}
	return p.config(creds).AuthCodeURL(csrf), state, nil
}

// Complete verifies a callback and exchanges its code for a token.
//
// providerErr is the "error" query parameter of the callback, if any.
func (p *Provider) Complete(ctx context.Context, creds models.Credentials, received string, expected *models.AuthState, code, providerErr string) (*models.TokenInfo, error) {
	if expected == nil || expected.CSRF == "" || received != expected.CSRF {
		return nil, shared.ErrStateMismatch
	}

	if providerErr != "" {
		return nil, &shared.ProviderDeniedError{Reason: providerErr}
	}

	if code == "" {
		return nil, shared.ErrMissingCode
	}

	if err := creds.Validate(); err != nil {
		return nil, &shared.ExchangeFailedError{Cause: err}
	}

	token, err := p.config(creds).Exchange(p.context(ctx), code)
	if err != nil {
		return nil, &shared.ExchangeFailedError{Cause: err}
	}

	return p.tokenInfo(token), nil
}

// UsableToken returns current when it is not expired, otherwise the result of a refresh grant.
//
// The returned token is never expired at the time of return.
func (p *Provider) UsableToken(ctx context.Context, current *models.TokenInfo, creds models.Credentials) (*models.TokenInfo, error) {
	if current == nil {
		return nil, shared.ErrNotAuthenticated
	}

	if !current.Expired(p.now()) {
		return current, nil
	}

	if current.RefreshToken == "" {
		return nil, &shared.RefreshFailedError{Cause: fmt.Errorf("no refresh token")}
	}

	// An empty access token forces the token source to use the refresh grant.
	src := p.config(creds).TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, &shared.RefreshFailedError{Cause: err}
	}

	next := p.tokenInfo(token)
	if next.Scope == "" {
		next.Scope = current.Scope
	}
	if next.Expired(p.now()) {
		return nil, &shared.RefreshFailedError{Cause: shared.ErrTokenExpired}
	}
	return next, nil
}

func (p *Provider) tokenInfo(t *oauth2.Token) *models.TokenInfo {
	info := &models.TokenInfo{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		info.Scope = scope
	} else {
		info.Scope = strings.Join(p.scopes, " ")
	}
	return info
}
