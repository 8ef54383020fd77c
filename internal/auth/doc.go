// Package auth implements the OAuth2 authorization-code flow against the Spotify accounts service.
//
// # Provider
//
// [Provider] is stateless. It builds an [oauth2.Config] per call from the user's [models.Credentials],
// so one Provider serves every session in the process.
//
//   - [Provider.Begin] : authorize URL plus a fresh CSRF [models.AuthState]
//   - [Provider.Complete] : callback verification and code exchange
//   - [Provider.UsableToken] : returns the current token, refreshing it first when it is within
//     [models.ExpiryLeeway] of expiry
//
// Callback checks run in a fixed order: state, provider error, missing code, exchange. A wrong
// state fails with [shared.ErrStateMismatch] whether or not a code is present.
//
// # Session
//
// [Session] is the per-user handle holding credentials, the pending state and the current token
// behind a mutex. The web app keeps one per browser session; the CLI keeps one per run.
//
// The pending state is consumed by the first callback, success or failure. Credentials are dropped
// on state mismatch, provider denial, exchange failure and refresh failure; a failed refresh also
// drops the token so the caller has to authorize again.
//
// Refresh runs under the session lock, so concurrent callers observe either the old token or the
// new one.
package auth
