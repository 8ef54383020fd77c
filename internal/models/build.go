package models

import (
	"fmt"
	"time"
)

// Outcome classifies how a single chart entry was resolved.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeMatched
	OutcomeSearchError
	OutcomeAddFailed // matched but the add call failed; counted as not found
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeSearchError:
		return "search_error"
	case OutcomeAddFailed:
		return "add_failed"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of [Outcome.String].
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "matched":
		return OutcomeMatched, nil
	case "not_found":
		return OutcomeNotFound, nil
	case "search_error":
		return OutcomeSearchError, nil
	case "add_failed":
		return OutcomeAddFailed, nil
	default:
		return OutcomeNotFound, fmt.Errorf("unknown outcome %q", s)
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MatchResult records the outcome for one chart entry. TrackID and TrackURI are set when the
// entry matched; Err carries the cause for SearchError and AddFailed.
type MatchResult struct {
	Entry    ChartEntry `json:"entry"`
	Outcome  Outcome    `json:"outcome"`
	TrackID  string     `json:"track_id,omitempty"`
	TrackURI string     `json:"track_uri,omitempty"`
	Err      error      `json:"-"`
}

// Matched reports whether the track was found and added.
func (r MatchResult) Matched() bool { return r.Outcome == OutcomeMatched }

// ErrorString returns the cause message, or "" when there is none.
func (r MatchResult) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// BuildSummary is the terminal artifact of a playlist build.
//
// Matched, NotFound and Errored hold entry labels in chart order and always sum to len(Results).
type BuildSummary struct {
	Year         int           `json:"year"`
	PlaylistID   string        `json:"playlist_id"`
	PlaylistName string        `json:"playlist_name"`
	PlaylistURL  string        `json:"playlist_url"`
	Results      []MatchResult `json:"results"`
	Matched      []string      `json:"matched"`
	NotFound     []string      `json:"not_found"`
	Errored      []string      `json:"errored"`
	ErrorAdding  bool          `json:"error_adding"`
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
}

// NewBuildSummary folds ordered results into a summary.
func NewBuildSummary(year int, playlistID, playlistName, playlistURL string, results []MatchResult) *BuildSummary {
	s := &BuildSummary{
		Year:         year,
		PlaylistID:   playlistID,
		PlaylistName: playlistName,
		PlaylistURL:  playlistURL,
		Results:      results,
		Matched:      []string{},
		NotFound:     []string{},
		Errored:      []string{},
	}

	for _, r := range results {
		label := r.Entry.Label()
		switch r.Outcome {
		case OutcomeMatched:
			s.Matched = append(s.Matched, label)
		case OutcomeSearchError:
			s.Errored = append(s.Errored, label)
			s.ErrorAdding = true
		case OutcomeAddFailed:
			s.NotFound = append(s.NotFound, label)
			s.ErrorAdding = true
		default:
			s.NotFound = append(s.NotFound, label)
		}
	}

	s.Success = len(s.Matched) > 0
	if s.Success {
		s.Message = fmt.Sprintf("Successfully created playlist '%s' with %d songs.", playlistName, len(s.Matched))
		if missing := len(s.NotFound) + len(s.Errored); missing > 0 {
			s.Message += fmt.Sprintf(" %d songs could not be found on Spotify.", missing)
		}
	} else {
		s.Message = "Failed to add any songs to the playlist."
		s.ErrorAdding = true
	}
	return s
}

// Unresolved lists every entry that did not end up in the playlist, in chart order.
func (s *BuildSummary) Unresolved() []string {
	out := make([]string, 0, len(s.NotFound)+len(s.Errored))
	for _, r := range s.Results {
		if !r.Matched() {
			out = append(out, r.Entry.Label())
		}
	}
	return out
}

// BuildStatus is the persisted terminal state of a build.
type BuildStatus string

const (
	BuildCompleted BuildStatus = "completed"
	BuildFailed    BuildStatus = "failed"
	BuildCanceled  BuildStatus = "canceled"
)

// BuildRecord is a persisted playlist build with its counts. Per-entry results are stored
// alongside it and loaded separately.
type BuildRecord struct {
	id            string
	sequence      int
	year          int
	playlistID    string
	playlistName  string
	playlistURL   string
	status        BuildStatus
	matchedCount  int
	notFoundCount int
	erroredCount  int
	errorMessage  string
	results       []MatchResult
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewBuildRecord creates a record for a summary. A nil summary records a build that failed
// before a playlist existed.
func NewBuildRecord(sequence, year int, summary *BuildSummary, status BuildStatus, buildErr error) *BuildRecord {
	now := time.Now()
	r := &BuildRecord{
		sequence:  sequence,
		year:      year,
		status:    status,
		createdAt: now,
		updatedAt: now,
	}
	if buildErr != nil {
		r.errorMessage = buildErr.Error()
	}
	if summary != nil {
		r.playlistID = summary.PlaylistID
		r.playlistName = summary.PlaylistName
		r.playlistURL = summary.PlaylistURL
		r.matchedCount = len(summary.Matched)
		r.notFoundCount = len(summary.NotFound)
		r.erroredCount = len(summary.Errored)
		r.results = summary.Results
	}
	if r.playlistName == "" {
		r.playlistName = PlaylistName(year)
	}
	return r
}

// RestoreBuildRecord rebuilds a record from stored columns.
func RestoreBuildRecord(id string, sequence, year int, playlistID, playlistName, playlistURL string, status BuildStatus, matched, notFound, errored int, errorMessage string, createdAt, updatedAt time.Time) *BuildRecord {
	return &BuildRecord{
		id:            id,
		sequence:      sequence,
		year:          year,
		playlistID:    playlistID,
		playlistName:  playlistName,
		playlistURL:   playlistURL,
		status:        status,
		matchedCount:  matched,
		notFoundCount: notFound,
		erroredCount:  errored,
		errorMessage:  errorMessage,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (r *BuildRecord) ID() string                  { return r.id }
func (r *BuildRecord) Sequence() int               { return r.sequence }
func (r *BuildRecord) Year() int                   { return r.year }
func (r *BuildRecord) PlaylistID() string          { return r.playlistID }
func (r *BuildRecord) PlaylistName() string        { return r.playlistName }
func (r *BuildRecord) PlaylistURL() string         { return r.playlistURL }
func (r *BuildRecord) Status() BuildStatus         { return r.status }
func (r *BuildRecord) MatchedCount() int           { return r.matchedCount }
func (r *BuildRecord) NotFoundCount() int          { return r.notFoundCount }
func (r *BuildRecord) ErroredCount() int           { return r.erroredCount }
func (r *BuildRecord) ErrorMessage() string        { return r.errorMessage }
func (r *BuildRecord) Results() []MatchResult      { return r.results }
func (r *BuildRecord) CreatedAt() time.Time        { return r.createdAt }
func (r *BuildRecord) UpdatedAt() time.Time        { return r.updatedAt }
func (r *BuildRecord) DeletedAt() *time.Time       { return r.deletedAt }
func (r *BuildRecord) SetID(id string)             { r.id = id }
func (r *BuildRecord) SetSequence(seq int)         { r.sequence = seq }
func (r *BuildRecord) SetResults(rs []MatchResult) { r.results = rs }
func (r *BuildRecord) SetDeletedAt(t *time.Time)   { r.deletedAt = t }

// Total is the number of chart entries the build attempted.
func (r *BuildRecord) Total() int {
	return r.matchedCount + r.notFoundCount + r.erroredCount
}

// Validate implements [Model].
func (r *BuildRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("build id is required")
	}
	if r.year <= 0 {
		return fmt.Errorf("build year is required")
	}
	switch r.status {
	case BuildCompleted, BuildFailed, BuildCanceled:
	default:
		return fmt.Errorf("invalid build status %q", r.status)
	}
	if r.playlistName == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// PlaylistName is the deterministic playlist title for a chart year.
func PlaylistName(year int) string {
	return fmt.Sprintf("Billboard Top 100 - %d", year)
}

// PlaylistDescription is the fixed playlist description for a chart year.
func PlaylistDescription(year int) string {
	return fmt.Sprintf("A playlist of the top 100 songs from Billboard's Hot 100 chart in %d.", year)
}
