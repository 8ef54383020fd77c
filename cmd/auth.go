package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/server"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
)

// credentials returns the client credentials from config/env.
func (r *Runner) credentials() (models.Credentials, error) {
	spotify := r.config.Credentials.Spotify
	creds := models.Credentials{ClientID: spotify.ClientID, ClientSecret: spotify.ClientSecret}
	if err := creds.Validate(); err != nil {
		return creds, fmt.Errorf("%w: set credentials.spotify in %s or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", err, r.configPath)
	}
	return creds, nil
}

// callbackAddr derives the loopback listen address from the registered redirect URI.
func callbackAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	return u.Host, nil
}

// authorize runs the loopback authorization flow for session.
//
// A local server receives the redirect, the browser is opened on the authorize URL, and the
// call waits for the callback until ctx is done or the auth timeout elapses.
func (r *Runner) authorize(ctx context.Context, session *auth.Session, creds models.Credentials, progress chan<- tasks.ProgressUpdate) error {
	addr, err := callbackAddr(r.provider.RedirectURL())
	if err != nil {
		return err
	}

	authURL, err := session.Begin(creds)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(session)
	router := server.NewBasicRouter()
	router.Handler(handler)

	serveCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(serveCtx, server.New(addr, router), r.logger)
	}()

	sendProgress(progress, tasks.AuthorizeUpdate(authURL))
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
	}

	timeout, cancel := context.WithTimeout(ctx, r.authTimeout)
	defer cancel()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-errs:
		stop()
		session.Abandon()
		return fmt.Errorf("%w: callback server: %w", shared.ErrServiceUnavailable, err)
	case <-timeout.Done():
		stop()
		<-errs
		session.Abandon()
		if errors.Is(timeout.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.authTimeout)
		}
		return fmt.Errorf("%w: %w", shared.ErrBuildCanceled, context.Cause(ctx))
	}

	stop()
	if err := <-errs; err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if result.Token == nil {
		return fmt.Errorf("%w: no token received", shared.ErrNotAuthenticated)
	}
	r.logger.Info("authorization complete", "expiry", result.Token.Expiry)
	return nil
}

func sendProgress(progress chan<- tasks.ProgressUpdate, update tasks.ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
