// package services defines interface Service for interacting with music catalog HTTP APIs
package services

import (
	"context"
)

// TokenSource supplies a usable bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Service defines the catalog and playlist operations a build needs from a music provider.
type Service interface {
	// CurrentUser returns the profile that owns the token.
	CurrentUser(ctx context.Context) (*User, error)

	// SearchTracks runs a free-text track search and returns at most limit results.
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, playlist PlaylistRequest) (*Playlist, error)

	// AddTracks appends tracks (by URI) to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// User is the authenticated account.
type User struct {
	ID          string
	DisplayName string
}

// PlaylistRequest describes a playlist to create.
type PlaylistRequest struct {
	Name        string
	Description string
	Public      bool
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string
	Name        string
	Description string
	URL         string
	Public      bool
}

// Track represents a music track from any service
type Track struct {
	ID     string
	URI    string
	Title  string
	Artist string
	Album  string
}
