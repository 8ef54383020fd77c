package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID          string             `json:"id"`
	Sequence    int                `json:"sequence"`
	Year        int                `json:"year"`
	Status      models.BuildStatus `json:"status"`
	Playlist    string             `json:"playlist"`
	PlaylistURL string             `json:"playlist_url,omitempty"`
	Matched     int                `json:"matched"`
	NotFound    int                `json:"not_found"`
	Errored     int                `json:"errored"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

// History lists past builds, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if year := cmd.Int("year"); year > 0 {
		criteria["year"] = year
	}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	builds, err := repositories.NewBuildRepository(db).List(criteria)
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(builds))
	for _, b := range builds {
		entries = append(entries, historyEntry{
			ID:          b.ID(),
			Sequence:    b.Sequence(),
			Year:        b.Year(),
			Status:      b.Status(),
			Playlist:    b.PlaylistName(),
			PlaylistURL: b.PlaylistURL(),
			Matched:     b.MatchedCount(),
			NotFound:    b.NotFoundCount(),
			Errored:     b.ErroredCount(),
			Error:       b.ErrorMessage(),
			CreatedAt:   b.CreatedAt().Format("2006-01-02 15:04:05"),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No builds recorded yet.\n")
	}

	r.writePlainHeader("Build History")
	for _, e := range entries {
		r.writePlain("#%-4d %s  %d  %-9s  %d matched, %d not found, %d errors\n",
			e.Sequence, e.CreatedAt, e.Year, e.Status, e.Matched, e.NotFound, e.Errored)
		if e.PlaylistURL != "" {
			r.writePlain("      %s\n", e.PlaylistURL)
		}
		if e.Error != "" {
			r.writePlain("      error: %s\n", e.Error)
		}
	}
	return nil
}

// HistoryShow prints the per-entry results of one build.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: build id", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	build, err := repositories.NewBuildRepository(db).Get(id)
	if err != nil {
		return err
	}
	results := build.Results()

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"id":       build.ID(),
			"year":     build.Year(),
			"status":   build.Status(),
			"playlist": build.PlaylistName(),
			"url":      build.PlaylistURL(),
			"results":  results,
		}, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%s)", build.PlaylistName(), build.Status()))
	for _, res := range results {
		r.writePlain("%3d. %-12s %s\n", res.Entry.Position, res.Outcome, res.Entry.Label())
	}
	return nil
}
