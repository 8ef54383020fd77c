package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
)

// Matcher resolves chart entries to catalog tracks with exactly one search call per entry.
//
// It never retries and never touches a playlist.
type Matcher struct {
	service services.Service
}

// NewMatcher creates a Matcher that searches svc.
func NewMatcher(svc services.Service) *Matcher {
	return &Matcher{service: svc}
}

// Query builds the search string for an entry: free-text title plus an artist filter.
func Query(entry models.ChartEntry) string {
	return fmt.Sprintf("%s artist:%s", entry.Title, entry.Artist)
}

// Match searches for entry and classifies the outcome as Matched, NotFound or SearchError.
func (m *Matcher) Match(ctx context.Context, entry models.ChartEntry) models.MatchResult {
	result := models.MatchResult{Entry: entry}

	tracks, err := m.service.SearchTracks(ctx, Query(entry), 1)
	switch {
	case err != nil:
		result.Outcome = models.OutcomeSearchError
		result.Err = fmt.Errorf("%w: %w", shared.ErrSearchFailed, err)
	case len(tracks) == 0:
		result.Outcome = models.OutcomeNotFound
	default:
		result.Outcome = models.OutcomeMatched
		result.TrackID = tracks[0].ID
		result.TrackURI = tracks[0].URI
	}
	return result
}
