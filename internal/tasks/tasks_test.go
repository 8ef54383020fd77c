package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
)

type mockService struct {
	mu sync.Mutex

	user        *services.User
	userErr     error
	playlist    *services.Playlist
	createErr   error
	tracks      map[string]services.Track // keyed by query
	searchErrs  map[string]error
	addErrs     map[string]error // keyed by URI
	searchDelay time.Duration
	onSearch    func(query string)

	searches  []string
	added     []string
	creates   []services.PlaylistRequest
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newMockService() *mockService {
	return &mockService{
		user:     &services.User{ID: "user-1", DisplayName: "Test User"},
		playlist: &services.Playlist{ID: "pl-1", Name: "Billboard Top 100", URL: "https://open.spotify.com/playlist/pl-1"},
		tracks:   map[string]services.Track{},
	}
}

func (m *mockService) withTrack(title, artist, id string) *mockService {
	q := Query(models.ChartEntry{Title: title, Artist: artist})
	m.tracks[q] = services.Track{ID: id, URI: "spotify:track:" + id, Title: title, Artist: artist}
	return m
}

func (m *mockService) Name() string { return "Mock" }

func (m *mockService) CurrentUser(ctx context.Context) (*services.User, error) {
	if m.userErr != nil {
		return nil, m.userErr
	}
	return m.user, nil
}

func (m *mockService) SearchTracks(ctx context.Context, query string, limit int) ([]services.Track, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxFlight.Load()
		if n <= cur || m.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.searches = append(m.searches, query)
	m.mu.Unlock()

	if m.onSearch != nil {
		m.onSearch(query)
	}
	if m.searchDelay > 0 {
		time.Sleep(m.searchDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err, ok := m.searchErrs[query]; ok {
		return nil, err
	}
	if tr, ok := m.tracks[query]; ok {
		return []services.Track{tr}, nil
	}
	return []services.Track{}, nil
}

func (m *mockService) CreatePlaylist(ctx context.Context, userID string, p services.PlaylistRequest) (*services.Playlist, error) {
	m.mu.Lock()
	m.creates = append(m.creates, p)
	m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	pl := *m.playlist
	pl.Name = p.Name
	return &pl, nil
}

func (m *mockService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	for _, uri := range uris {
		if err, ok := m.addErrs[uri]; ok {
			return err
		}
	}
	m.mu.Lock()
	m.added = append(m.added, uris...)
	m.mu.Unlock()
	return nil
}

func (m *mockService) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searches)
}

func chart(n int) []models.ChartEntry {
	entries := make([]models.ChartEntry, n)
	for i := range entries {
		entries[i] = models.ChartEntry{
			Position: i + 1,
			Title:    fmt.Sprintf("Song %d", i+1),
			Artist:   fmt.Sprintf("Artist %d", i+1),
		}
	}
	return entries
}

func TestMatcher(t *testing.T) {
	entry := models.ChartEntry{Position: 1, Title: "Song A", Artist: "Artist A"}

	t.Run("query uses artist filter", func(t *testing.T) {
		if got := Query(entry); got != "Song A artist:Artist A" {
			t.Errorf("Query() = %q", got)
		}
	})

	t.Run("matched", func(t *testing.T) {
		svc := newMockService().withTrack("Song A", "Artist A", "id-a")
		res := NewMatcher(svc).Match(context.Background(), entry)

		if res.Outcome != models.OutcomeMatched {
			t.Fatalf("Outcome = %v, want matched", res.Outcome)
		}
		if res.TrackID != "id-a" || res.TrackURI != "spotify:track:id-a" {
			t.Errorf("track = %q %q", res.TrackID, res.TrackURI)
		}
	})

	t.Run("not found", func(t *testing.T) {
		res := NewMatcher(newMockService()).Match(context.Background(), entry)
		if res.Outcome != models.OutcomeNotFound {
			t.Errorf("Outcome = %v, want not_found", res.Outcome)
		}
		if res.Err != nil {
			t.Errorf("Err = %v, want nil", res.Err)
		}
	})

	t.Run("search error", func(t *testing.T) {
		svc := newMockService()
		svc.searchErrs = map[string]error{Query(entry): errors.New("boom")}

		res := NewMatcher(svc).Match(context.Background(), entry)
		if res.Outcome != models.OutcomeSearchError {
			t.Fatalf("Outcome = %v, want search_error", res.Outcome)
		}
		if !errors.Is(res.Err, shared.ErrSearchFailed) {
			t.Errorf("Err = %v, want ErrSearchFailed", res.Err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		svc := newMockService().withTrack("Song A", "Artist A", "id-a")
		m := NewMatcher(svc)

		first := m.Match(context.Background(), entry)
		second := m.Match(context.Background(), entry)
		if first.Outcome != second.Outcome || first.TrackID != second.TrackID {
			t.Errorf("Match() not stable: %+v vs %+v", first, second)
		}
		if svc.searchCount() != 2 {
			t.Errorf("searches = %d, want one per call", svc.searchCount())
		}
	})
}

func TestPlaylistEngine_Build(t *testing.T) {
	t.Run("one match one miss", func(t *testing.T) {
		svc := newMockService().withTrack("Song A", "Artist A", "id-a")
		engine := NewPlaylistEngine(svc, EngineOptions{})

		entries := []models.ChartEntry{
			{Position: 1, Title: "Song A", Artist: "Artist A"},
			{Position: 2, Title: "Song B", Artist: "Artist B"},
		}
		summary, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: entries}, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		if summary.PlaylistName != "Billboard Top 100 - 2023" {
			t.Errorf("PlaylistName = %q", summary.PlaylistName)
		}
		if len(summary.Matched) != 1 || summary.Matched[0] != "Song A by Artist A" {
			t.Errorf("Matched = %v", summary.Matched)
		}
		if len(summary.NotFound) != 1 || summary.NotFound[0] != "Song B by Artist B" {
			t.Errorf("NotFound = %v", summary.NotFound)
		}
		if !summary.Success {
			t.Error("Success = false, want true")
		}
		want := "Successfully created playlist 'Billboard Top 100 - 2023' with 1 songs. 1 songs could not be found on Spotify."
		if summary.Message != want {
			t.Errorf("Message = %q, want %q", summary.Message, want)
		}

		if len(svc.creates) != 1 {
			t.Fatalf("creates = %d, want 1", len(svc.creates))
		}
		req := svc.creates[0]
		if req.Public {
			t.Error("playlist should be private")
		}
		if req.Description != models.PlaylistDescription(2023) {
			t.Errorf("Description = %q", req.Description)
		}
		if len(svc.added) != 1 || svc.added[0] != "spotify:track:id-a" {
			t.Errorf("added = %v", svc.added)
		}
	})

	t.Run("counts sum and order preserved", func(t *testing.T) {
		svc := newMockService()
		entries := chart(25)
		for i, e := range entries {
			if i%3 != 0 {
				svc.withTrack(e.Title, e.Artist, fmt.Sprintf("id-%d", i))
			}
		}
		svc.searchErrs = map[string]error{Query(entries[4]): errors.New("server error")}
		svc.searchDelay = time.Millisecond

		engine := NewPlaylistEngine(svc, EngineOptions{Workers: 6})
		summary, err := engine.Build(context.Background(), BuildRequest{Year: 2010, Entries: entries}, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		if got := len(summary.Matched) + len(summary.NotFound) + len(summary.Errored); got != len(entries) {
			t.Errorf("counts sum = %d, want %d", got, len(entries))
		}
		if len(summary.Errored) != 1 || summary.Errored[0] != entries[4].Label() {
			t.Errorf("Errored = %v", summary.Errored)
		}
		for i, r := range summary.Results {
			if r.Entry.Position != i+1 {
				t.Fatalf("Results[%d].Position = %d, order not preserved", i, r.Entry.Position)
			}
		}
		if svc.searchCount() != len(entries) {
			t.Errorf("searches = %d, want exactly one per entry", svc.searchCount())
		}
	})

	t.Run("empty chart", func(t *testing.T) {
		svc := newMockService()
		engine := NewPlaylistEngine(svc, EngineOptions{})

		summary, err := engine.Build(context.Background(), BuildRequest{Year: 2023}, nil)
		if !errors.Is(err, shared.ErrNoChartData) {
			t.Errorf("error = %v, want ErrNoChartData", err)
		}
		if summary != nil {
			t.Error("summary should be nil")
		}
		if len(svc.creates) != 0 || svc.searchCount() != 0 {
			t.Error("no calls expected for an empty chart")
		}
	})

	t.Run("user lookup rejected", func(t *testing.T) {
		svc := newMockService()
		svc.userErr = shared.ErrTokenExpired
		engine := NewPlaylistEngine(svc, EngineOptions{})

		_, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: chart(3)}, nil)
		if !errors.Is(err, shared.ErrAuthenticationRejected) {
			t.Errorf("error = %v, want ErrAuthenticationRejected", err)
		}
		if len(svc.creates) != 0 {
			t.Error("no playlist should be created")
		}
	})

	t.Run("playlist creation fails", func(t *testing.T) {
		svc := newMockService()
		svc.createErr = errors.New("status 500")
		engine := NewPlaylistEngine(svc, EngineOptions{})

		_, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: chart(3)}, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("error = %v, want ErrAPIRequest", err)
		}
		if svc.searchCount() != 0 {
			t.Error("no searches expected after a failed create")
		}
	})

	t.Run("add failure counts as not found", func(t *testing.T) {
		svc := newMockService().withTrack("Song 1", "Artist 1", "id-1").withTrack("Song 2", "Artist 2", "id-2")
		svc.addErrs = map[string]error{"spotify:track:id-2": errors.New("status 403")}
		engine := NewPlaylistEngine(svc, EngineOptions{})

		summary, err := engine.Build(context.Background(), BuildRequest{Year: 2001, Entries: chart(2)}, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := summary.Results[1].Outcome; got != models.OutcomeAddFailed {
			t.Errorf("Outcome = %v, want add_failed", got)
		}
		if len(summary.Matched) != 1 || len(summary.NotFound) != 1 {
			t.Errorf("Matched = %v, NotFound = %v", summary.Matched, summary.NotFound)
		}
		if !summary.ErrorAdding {
			t.Error("ErrorAdding = false, want true")
		}
	})

	t.Run("nothing matched", func(t *testing.T) {
		engine := NewPlaylistEngine(newMockService(), EngineOptions{})

		summary, err := engine.Build(context.Background(), BuildRequest{Year: 1999, Entries: chart(4)}, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if summary.Success {
			t.Error("Success = true, want false")
		}
		if summary.PlaylistID == "" {
			t.Error("created playlist should still be reported")
		}
		if summary.Message != "Failed to add any songs to the playlist." {
			t.Errorf("Message = %q", summary.Message)
		}
	})

	t.Run("canceled before fan-out", func(t *testing.T) {
		svc := newMockService()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := NewPlaylistEngine(svc, EngineOptions{})
		summary, err := engine.Build(ctx, BuildRequest{Year: 2023, Entries: chart(5)}, nil)
		if !errors.Is(err, shared.ErrBuildCanceled) {
			t.Fatalf("error = %v, want ErrBuildCanceled", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if summary == nil {
			t.Fatal("partial summary expected")
		}
		if len(summary.Errored) != 5 {
			t.Errorf("Errored = %d, want 5", len(summary.Errored))
		}
		if svc.searchCount() != 0 {
			t.Errorf("searches = %d, want 0", svc.searchCount())
		}
	})

	t.Run("canceled mid-build", func(t *testing.T) {
		svc := newMockService()
		entries := chart(3)
		for i, e := range entries {
			svc.withTrack(e.Title, e.Artist, fmt.Sprintf("id-%d", i))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc.onSearch = func(q string) {
			if q == Query(entries[0]) {
				cancel()
			}
		}

		engine := NewPlaylistEngine(svc, EngineOptions{Workers: 1})
		summary, err := engine.Build(ctx, BuildRequest{Year: 2023, Entries: entries}, nil)
		if !errors.Is(err, shared.ErrBuildCanceled) {
			t.Fatalf("error = %v, want ErrBuildCanceled", err)
		}

		if got := summary.Results[0].Outcome; got != models.OutcomeMatched {
			t.Errorf("in-flight entry outcome = %v, want matched", got)
		}
		if got := summary.Results[2].Outcome; got != models.OutcomeSearchError {
			t.Errorf("undispatched entry outcome = %v, want search_error", got)
		}
		if got := len(summary.Matched) + len(summary.NotFound) + len(summary.Errored); got != len(entries) {
			t.Errorf("counts sum = %d, want %d", got, len(entries))
		}
	})

	t.Run("no dispatch after cancel", func(t *testing.T) {
		svc := newMockService()
		entries := chart(4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc.onSearch = func(q string) {
			if q == Query(entries[0]) {
				// the dispatch loop is waiting for the only slot by now
				time.Sleep(20 * time.Millisecond)
				cancel()
			}
		}

		engine := NewPlaylistEngine(svc, EngineOptions{Workers: 1})
		summary, err := engine.Build(ctx, BuildRequest{Year: 2023, Entries: entries}, nil)
		if !errors.Is(err, shared.ErrBuildCanceled) {
			t.Fatalf("error = %v, want ErrBuildCanceled", err)
		}
		if got := svc.searchCount(); got != 1 {
			t.Errorf("searches = %d, want 1", got)
		}
		for i, r := range summary.Results[1:] {
			if r.Outcome != models.OutcomeSearchError {
				t.Errorf("entry %d outcome = %v, want search_error", i+2, r.Outcome)
			}
		}
	})

	t.Run("worker bound", func(t *testing.T) {
		svc := newMockService()
		svc.searchDelay = 5 * time.Millisecond

		engine := NewPlaylistEngine(svc, EngineOptions{Workers: 2})
		if _, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: chart(12)}, nil); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := svc.maxFlight.Load(); got > 2 {
			t.Errorf("max in flight = %d, want <= 2", got)
		}
	})

	t.Run("progress", func(t *testing.T) {
		svc := newMockService().withTrack("Song 1", "Artist 1", "id-1")
		engine := NewPlaylistEngine(svc, EngineOptions{})

		progress := make(chan ProgressUpdate, 32)
		if _, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: chart(3)}, progress); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		close(progress)

		var phases []Phase
		matchSteps := 0
		for u := range progress {
			phases = append(phases, u.Phase)
			if u.Phase == MatchTracks {
				matchSteps++
				if u.Total != 3 {
					t.Errorf("Total = %d, want 3", u.Total)
				}
			}
		}
		if matchSteps != 3 {
			t.Errorf("match updates = %d, want 3", matchSteps)
		}
		if phases[0] != ResolveUser || phases[len(phases)-1] != Complete {
			t.Errorf("phases = %v", phases)
		}
	})
}

func TestNewPlaylistEngine(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"default", 0, DefaultWorkers},
		{"negative", -3, DefaultWorkers},
		{"custom", 7, 7},
		{"capped", 50, MaxWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewPlaylistEngine(newMockService(), EngineOptions{Workers: tt.workers})
			if e.workers != tt.want {
				t.Errorf("workers = %d, want %d", e.workers, tt.want)
			}
			if e.callTimeout != DefaultCallTimeout {
				t.Errorf("callTimeout = %v", e.callTimeout)
			}
		})
	}
}

func TestPlaylistEngine_Preview(t *testing.T) {
	t.Run("found and missing", func(t *testing.T) {
		svc := newMockService().withTrack("Song 2", "Artist 2", "id-2")
		engine := NewPlaylistEngine(svc, EngineOptions{})

		results, err := engine.Preview(context.Background(), chart(3), nil)
		if err != nil {
			t.Fatalf("Preview() error = %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("len = %d, want 3", len(results))
		}
		if results[0].Found || !results[1].Found || results[2].Found {
			t.Errorf("found = %v %v %v", results[0].Found, results[1].Found, results[2].Found)
		}
		for i, r := range results {
			if r.Index != i {
				t.Errorf("Index = %d, want %d", r.Index, i)
			}
		}
		if len(svc.creates) != 0 || len(svc.added) != 0 {
			t.Error("preview must not touch playlists")
		}
	})

	t.Run("progress keeps chart index", func(t *testing.T) {
		svc := newMockService()
		entries := chart(3)
		svc.onSearch = func(q string) {
			if q == Query(entries[0]) {
				time.Sleep(50 * time.Millisecond)
			}
		}

		progress := make(chan ProgressUpdate, 8)
		engine := NewPlaylistEngine(svc, EngineOptions{Workers: 4})
		if _, err := engine.Preview(context.Background(), entries, progress); err != nil {
			t.Fatalf("Preview() error = %v", err)
		}
		close(progress)

		seen := 0
		for u := range progress {
			res, ok := u.Data.(PreviewResult)
			if !ok {
				t.Fatalf("Data = %T, want PreviewResult", u.Data)
			}
			if want := entries[res.Index].Title; res.Title != want {
				t.Errorf("Index %d carries %q, want %q", res.Index, res.Title, want)
			}
			seen++
		}
		if seen != len(entries) {
			t.Errorf("updates = %d, want %d", seen, len(entries))
		}
	})

	t.Run("search error", func(t *testing.T) {
		svc := newMockService()
		entries := chart(1)
		svc.searchErrs = map[string]error{Query(entries[0]): errors.New("boom")}

		results, err := NewPlaylistEngine(svc, EngineOptions{}).Preview(context.Background(), entries, nil)
		if err != nil {
			t.Fatalf("Preview() error = %v", err)
		}
		if results[0].Found || !strings.Contains(results[0].Error, "boom") {
			t.Errorf("result = %+v", results[0])
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewPlaylistEngine(newMockService(), EngineOptions{}).Preview(context.Background(), nil, nil)
		if !errors.Is(err, shared.ErrNoChartData) {
			t.Errorf("error = %v, want ErrNoChartData", err)
		}
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	svc := newMockService().withTrack("Song 1", "Artist 1", "id-1")
	engine := NewPlaylistEngine(svc, EngineOptions{})

	// Unbuffered and never read
	progressCh := make(chan ProgressUpdate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := engine.Build(context.Background(), BuildRequest{Year: 2023, Entries: chart(2)}, progressCh); err != nil {
			t.Errorf("Build() error = %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Build() should not block on progress sends")
	}
}

func TestPhase_Text(t *testing.T) {
	for p := Authorize; p <= Complete; p++ {
		text, err := p.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", p, err)
		}
		var got Phase
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != p {
			t.Errorf("round trip of %v gave %v", p, got)
		}
	}

	var p Phase
	if err := p.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		Authorize:      "authorize",
		FetchChart:     "fetch_chart",
		ResolveUser:    "resolve_user",
		CreatePlaylist: "create_playlist",
		MatchTracks:    "match_tracks",
		Complete:       "complete",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
}
