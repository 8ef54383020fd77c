package tasks

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers     = 4
	MaxWorkers         = 10
	DefaultCallTimeout = 10 * time.Second
)

// BuildRequest is the input of [PlaylistEngine.Build].
type BuildRequest struct {
	Year    int
	Entries []models.ChartEntry
}

// PreviewResult reports whether one entry could be found, without touching any playlist.
type PreviewResult struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Found  bool   `json:"found"`
	Error  string `json:"error,omitempty"`
}

// Engine defines the build operations.
type Engine interface {
	// Build creates the year's playlist and adds every entry that can be matched.
	Build(ctx context.Context, req BuildRequest, progress chan<- ProgressUpdate) (*models.BuildSummary, error)

	// Preview searches for every entry without creating a playlist.
	Preview(ctx context.Context, entries []models.ChartEntry, progress chan<- ProgressUpdate) ([]PreviewResult, error)
}

// EngineOptions tunes the per-entry fan-out.
type EngineOptions struct {
	Workers     int           // Concurrent entries in flight (default 4, max 10)
	CallTimeout time.Duration // Deadline for each dispatched search+add once detached from the caller
	Logger      *log.Logger
}

// PlaylistEngine implements Engine against a [services.Service].
type PlaylistEngine struct {
	service     services.Service
	matcher     *Matcher
	workers     int
	callTimeout time.Duration
	logger      *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine for svc.
func NewPlaylistEngine(svc services.Service, opts EngineOptions) *PlaylistEngine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PlaylistEngine{
		service:     svc,
		matcher:     NewMatcher(svc),
		workers:     workers,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Build creates "Billboard Top 100 - <year>" and adds each matched entry to it.
//
// Fatal failures, each returned before any per-entry work: no entries ([shared.ErrNoChartData]),
// the current-user lookup ([shared.ErrAuthenticationRejected]) and playlist creation
// ([shared.ErrAPIRequest]). Per-entry failures are folded into the summary.
//
// When ctx is canceled mid-build, entries already in flight finish on a detached context and the
// rest are recorded as search errors. The partial summary is returned with an error wrapping
// [shared.ErrBuildCanceled]. The created playlist is never deleted.
func (e *PlaylistEngine) Build(ctx context.Context, req BuildRequest, progress chan<- ProgressUpdate) (*models.BuildSummary, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	if len(req.Entries) == 0 {
		return nil, fmt.Errorf("%w: year %d", shared.ErrNoChartData, req.Year)
	}

	logger := e.logger.With("year", req.Year)

	e.sendProgress(progress, resolveUserUpdate())
	user, err := e.service.CurrentUser(ctx)
	if err != nil {
		logger.Error("failed to resolve current user", "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthenticationRejected, err)
	}

	name := models.PlaylistName(req.Year)
	e.sendProgress(progress, creatingPlaylistUpdate(name))

	playlist, err := e.service.CreatePlaylist(ctx, user.ID, services.PlaylistRequest{
		Name:        name,
		Description: models.PlaylistDescription(req.Year),
		Public:      false,
	})
	if err != nil {
		logger.Error("failed to create playlist", "error", err)
		return nil, fmt.Errorf("%w: failed to create playlist: %w", shared.ErrAPIRequest, err)
	}

	logger.Info("playlist created", "playlist", playlist.ID, "user", user.ID)
	e.sendProgress(progress, createPlaylistUpdate(playlist))

	total := len(req.Entries)
	var done atomic.Int32

	results, dispatched := e.fanOut(ctx, req.Entries, func(callCtx context.Context, _ int, entry models.ChartEntry) models.MatchResult {
		res := e.resolve(callCtx, playlist.ID, entry)
		step := int(done.Add(1))
		logger.Debug("entry resolved", "position", entry.Position, "outcome", res.Outcome, "error", res.Err)
		e.sendProgress(progress, matchTrackUpdate(step, total, res))
		return res
	})

	for i := dispatched; i < total; i++ {
		results[i] = models.MatchResult{
			Entry:   req.Entries[i],
			Outcome: models.OutcomeSearchError,
			Err:     fmt.Errorf("not attempted: %w", context.Cause(ctx)),
		}
	}

	summary := models.NewBuildSummary(req.Year, playlist.ID, name, playlist.URL, results)
	logger.Info("build finished",
		"matched", len(summary.Matched),
		"not_found", len(summary.NotFound),
		"errored", len(summary.Errored),
	)
	e.sendProgress(progress, completeUpdate(summary))

	if dispatched < total {
		return summary, fmt.Errorf("%w: %d of %d entries not attempted: %w", shared.ErrBuildCanceled, total-dispatched, total, context.Cause(ctx))
	}
	return summary, nil
}

// resolve matches one entry and, when it matched, adds it to the playlist with a single call.
func (e *PlaylistEngine) resolve(ctx context.Context, playlistID string, entry models.ChartEntry) models.MatchResult {
	res := e.matcher.Match(ctx, entry)
	if res.Outcome != models.OutcomeMatched {
		if services.IsRateLimited(res.Err) {
			e.logger.Warn("search rate limited", "position", entry.Position)
		}
		return res
	}

	if err := e.service.AddTracks(ctx, playlistID, []string{res.TrackURI}); err != nil {
		res.Outcome = models.OutcomeAddFailed
		res.Err = err
	}
	return res
}

// Preview searches for each entry and reports whether it was found.
func (e *PlaylistEngine) Preview(ctx context.Context, entries []models.ChartEntry, progress chan<- ProgressUpdate) ([]PreviewResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if len(entries) == 0 {
		return nil, shared.ErrNoChartData
	}

	total := len(entries)
	var done atomic.Int32

	matches, dispatched := e.fanOut(ctx, entries, func(callCtx context.Context, i int, entry models.ChartEntry) models.MatchResult {
		res := e.matcher.Match(callCtx, entry)
		step := int(done.Add(1))
		e.sendProgress(progress, previewTrackUpdate(step, total, toPreview(i, res)))
		return res
	})

	previews := make([]PreviewResult, total)
	for i := range entries {
		if i >= dispatched {
			previews[i] = PreviewResult{Index: i, Title: entries[i].Title, Artist: entries[i].Artist, Error: context.Cause(ctx).Error()}
			continue
		}
		previews[i] = toPreview(i, matches[i])
	}

	if dispatched < total {
		return previews, fmt.Errorf("%w: %w", shared.ErrBuildCanceled, context.Cause(ctx))
	}
	return previews, nil
}

func toPreview(index int, res models.MatchResult) PreviewResult {
	return PreviewResult{
		Index:  index,
		Title:  res.Entry.Title,
		Artist: res.Entry.Artist,
		Found:  res.Outcome == models.OutcomeMatched,
		Error:  res.ErrorString(),
	}
}

// fanOut runs fn for each entry with at most e.workers in flight and stores each result at the
// entry's index. No entry is dispatched once ctx is done; it returns how many entries were
// dispatched. Dispatched calls run on a context detached from ctx and bounded by the call timeout.
func (e *PlaylistEngine) fanOut(ctx context.Context, entries []models.ChartEntry, fn func(context.Context, int, models.ChartEntry) models.MatchResult) ([]models.MatchResult, int) {
	results := make([]models.MatchResult, len(entries))
	detached := context.WithoutCancel(ctx)
	slots := make(chan struct{}, e.workers)

	var g errgroup.Group

	dispatched := 0
	for i, entry := range entries {
		select {
		case <-ctx.Done():
		case slots <- struct{}{}:
		}
		// both cases can be ready at once
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			defer func() { <-slots }()
			callCtx, cancel := context.WithTimeout(detached, e.callTimeout)
			defer cancel()

			results[i] = fn(callCtx, i, entry)
			return nil
		})
		dispatched++
	}

	_ = g.Wait()
	return results, dispatched
}
