// Package services defines the [Service] interface for music catalog providers and implements it for Spotify.
//
// # Service Interface
//
// A build needs four calls from a provider: the current user, a track search, playlist creation, and
// adding tracks. Keeping them behind [Service] lets the build engine run against an in-memory fake.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Web API with a bearer token pulled from a [TokenSource] on every
// request, so a refresh performed by the auth session is picked up by the next call. Requests pass
// through a shared [rate.Limiter] before they are sent.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrTokenExpired] : the API answered 401
//   - [shared.ErrAPIRequest] : any other non-2xx answer, as an [*APIError]
//   - [shared.ErrNotAuthenticated] : the token source had no token
package services
