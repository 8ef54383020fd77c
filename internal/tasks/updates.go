package tasks

import (
	"fmt"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI, TUI or SSE stream for display.
type ProgressUpdate struct {
	Phase   Phase  `json:"phase"`          // Operation phase
	Step    int    `json:"step"`           // Current step number within phase
	Total   int    `json:"total"`          // Total steps in this phase
	Message string `json:"message"`        // Human-readable message for display
	Data    any    `json:"data,omitempty"` // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authorize Phase = iota
	FetchChart
	ResolveUser
	CreatePlaylist
	MatchTracks
	Complete
)

func (p Phase) String() string {
	switch p {
	case Authorize:
		return "authorize"
	case FetchChart:
		return "fetch_chart"
	case ResolveUser:
		return "resolve_user"
	case CreatePlaylist:
		return "create_playlist"
	case MatchTracks:
		return "match_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for c := Authorize; c <= Complete; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// AuthorizeUpdate reports that the user is being sent to the provider.
func AuthorizeUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authorize,
		Step:    0,
		Total:   1,
		Message: "Waiting for Spotify authorization...",
		Data:    url,
	}
}

// FetchChartUpdate reports the chart fetch; a non-nil entries slice marks it finished.
func FetchChartUpdate(year int, entries []models.ChartEntry) ProgressUpdate {
	if entries == nil {
		return ProgressUpdate{
			Phase:   FetchChart,
			Step:    0,
			Total:   1,
			Message: fmt.Sprintf("Fetching Billboard Year-End Hot 100 for %d...", year),
		}
	}
	return ProgressUpdate{
		Phase:   FetchChart,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d songs for %d", len(entries), year),
		Data:    entries,
	}
}

func resolveUserUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveUser,
		Step:    0,
		Total:   1,
		Message: "Resolving Spotify user...",
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func createPlaylistUpdate(pl *services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func matchTrackUpdate(step, total int, res models.MatchResult) ProgressUpdate {
	var mark string
	switch res.Outcome {
	case models.OutcomeMatched:
		mark = "✓"
	case models.OutcomeNotFound:
		mark = "✗"
	default:
		mark = "!"
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, res.Entry.Label()),
		Data:    res,
	}
}

func previewTrackUpdate(step, total int, res PreviewResult) ProgressUpdate {
	status := "Not Found"
	if res.Found {
		status = "Found"
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Song %d/%d: %s by %s - %s", step, total, res.Title, res.Artist, status),
		Data:    res,
	}
}

func completeUpdate(summary *models.BuildSummary) ProgressUpdate {
	total := len(summary.Results)
	return ProgressUpdate{
		Phase:   Complete,
		Step:    total,
		Total:   total,
		Message: summary.Message,
		Data:    summary,
	}
}
