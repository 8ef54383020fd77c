// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
)

// MockService is a test double for [services.Service].
//
// Tracks maps a search query to its hits; a query with no entry returns no results.
type MockService struct {
	mu sync.Mutex

	User      *services.User
	UserErr   error
	Tracks    map[string][]services.Track
	SearchErr error
	CreateErr error
	AddErr    error

	Searches []string
	Created  []services.PlaylistRequest
	Added    []string
}

// NewMockService returns a MockService with a default user.
func NewMockService() *MockService {
	return &MockService{
		User:   &services.User{ID: "user-1", DisplayName: "Test User"},
		Tracks: map[string][]services.Track{},
	}
}

func (m *MockService) CurrentUser(ctx context.Context) (*services.User, error) {
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	return m.User, nil
}

func (m *MockService) SearchTracks(ctx context.Context, query string, limit int) ([]services.Track, error) {
	m.mu.Lock()
	m.Searches = append(m.Searches, query)
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	tracks := m.Tracks[query]
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, userID string, p services.PlaylistRequest) (*services.Playlist, error) {
	m.mu.Lock()
	m.Created = append(m.Created, p)
	m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return &services.Playlist{
		ID:          "playlist-1",
		Name:        p.Name,
		Description: p.Description,
		URL:         "https://open.spotify.com/playlist/playlist-1",
		Public:      p.Public,
	}, nil
}

func (m *MockService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	m.Added = append(m.Added, uris...)
	m.mu.Unlock()
	return nil
}

func (m *MockService) Name() string { return "mock" }

// SearchCount returns the number of SearchTracks calls so far.
func (m *MockService) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Searches)
}

// SampleSummary returns a two-entry summary with one match and one miss for year.
func SampleSummary(year int) *models.BuildSummary {
	results := []models.MatchResult{
		{
			Entry:    models.ChartEntry{Position: 1, Title: "Song A", Artist: "Artist A"},
			Outcome:  models.OutcomeMatched,
			TrackID:  "track-a",
			TrackURI: "spotify:track:track-a",
		},
		{
			Entry:   models.ChartEntry{Position: 2, Title: "Song B", Artist: "Artist B"},
			Outcome: models.OutcomeNotFound,
		},
	}
	return models.NewBuildSummary(year, "playlist-1", models.PlaylistName(year), "https://open.spotify.com/playlist/playlist-1", results)
}

// NewTestDB opens a migrated in-memory database that is closed with the test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Credentials accepted by [TokenServer].
var Credentials = models.Credentials{ClientID: "test_client_id", ClientSecret: "test_client_secret"}

const (
	GoodCode     = "good-code" // the only code TokenServer exchanges
	RefreshToken = "refresh-1" // the only refresh token TokenServer accepts
)

// TokenServer fakes the accounts service token endpoint.
type TokenServer struct {
	*httptest.Server
	Exchanges atomic.Int32
	Refreshes atomic.Int32
}

// NewTokenServer starts a TokenServer that is closed with the test.
func NewTokenServer(t *testing.T) *TokenServer {
	t.Helper()

	ts := &TokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != Credentials.ClientID || secret != Credentials.ClientSecret {
			writeTokenError(w, http.StatusUnauthorized, "invalid_client")
			return
		}
		if err := r.ParseForm(); err != nil {
			writeTokenError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		switch r.Form.Get("grant_type") {
		case "authorization_code":
			ts.Exchanges.Add(1)
			if r.Form.Get("code") != GoodCode {
				writeTokenError(w, http.StatusBadRequest, "invalid_grant")
				return
			}
			writeToken(w, "access-1", RefreshToken)
		case "refresh_token":
			ts.Refreshes.Add(1)
			if r.Form.Get("refresh_token") != RefreshToken {
				writeTokenError(w, http.StatusBadRequest, "invalid_grant")
				return
			}
			writeToken(w, "access-refreshed", "")
		default:
			writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type")
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// Endpoint points an OAuth2 config at the fake.
func (ts *TokenServer) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   ts.URL + "/authorize",
		TokenURL:  ts.URL + "/api/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

func writeToken(w http.ResponseWriter, access, refresh string) {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        "playlist-modify-public playlist-modify-private user-read-private",
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
