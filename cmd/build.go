package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/chartx/internal/auth"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/desertthunder/chartx/internal/ui"
	"github.com/urfave/cli/v3"
)

// buildFunc has the shape of [ui.BuildFunc] so both the TUI and the plain printer can drive it.
type buildFunc = ui.BuildFunc

// pipeline wires an authorized session into a build pipeline that records history.
func (r *Runner) pipeline(session *auth.Session) (*tasks.Pipeline, error) {
	source, err := r.chartSource()
	if err != nil {
		return nil, err
	}

	var history tasks.HistoryRecorder
	if db, err := r.database(); err != nil {
		r.logger.Warn("build history disabled", "error", err)
	} else {
		history = repositories.NewBuildRepository(db)
	}

	engine := tasks.NewPlaylistEngine(r.newService(session), tasks.EngineOptions{
		Workers:     r.config.Build.Workers,
		CallTimeout: r.config.Build.CallTimeout.Duration,
		Logger:      r.logger,
	})
	return tasks.NewPipeline(source, engine, history, r.logger), nil
}

// prepareBuild validates the inputs shared by build and preview and returns a session ready for
// [Runner.authorize].
func (r *Runner) prepareBuild(cmd *cli.Command) (int, *auth.Session, models.Credentials, error) {
	year := cmd.Int("year")
	if err := validateYear(year); err != nil {
		return 0, nil, models.Credentials{}, err
	}

	creds, err := r.credentials()
	if err != nil {
		return 0, nil, creds, err
	}
	return year, auth.NewSession(r.provider, r.logger), creds, nil
}

// Build authorizes with Spotify, builds the year's playlist and writes the summary.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	tui := cmd.Bool("tui")
	if tui {
		if err := r.useFileLogger(cmd.String("log-file")); err != nil {
			return err
		}
	}

	year, session, creds, err := r.prepareBuild(cmd)
	if err != nil {
		return err
	}

	pipeline, err := r.pipeline(session)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.BuildSummary, error) {
		if err := r.authorize(ctx, session, creds, progress); err != nil {
			return nil, err
		}
		return pipeline.Build(ctx, year, progress)
	}

	var summary *models.BuildSummary
	if tui {
		summary, err = ui.Run(ctx, year, run)
	} else {
		summary, err = r.runWithProgress(ctx, run)
	}

	if summary == nil {
		return err
	}
	if werr := r.writeSummary(summary, format, cmd.String("output"), cmd.Bool("save")); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

// Preview authorizes and reports which entries can be found, without creating a playlist.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	year, session, creds, err := r.prepareBuild(cmd)
	if err != nil {
		return err
	}

	pipeline, err := r.pipeline(session)
	if err != nil {
		return err
	}

	var results []tasks.PreviewResult
	_, err = r.runWithProgress(ctx, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.BuildSummary, error) {
		if err := r.authorize(ctx, session, creds, progress); err != nil {
			return nil, err
		}
		var perr error
		results, perr = pipeline.Preview(ctx, year, progress)
		return nil, perr
	})
	if results == nil {
		return err
	}

	if cmd.Bool("json") {
		if jerr := r.writeJSON(results, true); jerr != nil {
			return jerr
		}
		return err
	}

	found := 0
	r.writePlainHeader(fmt.Sprintf("Preview: %s", models.PlaylistName(year)))
	for _, res := range results {
		mark := "✗"
		if res.Found {
			mark = "✓"
			found++
		}
		line := fmt.Sprintf("%3d. %s %s - %s", res.Index+1, mark, res.Title, res.Artist)
		if res.Error != "" {
			line += " (" + res.Error + ")"
		}
		r.writePlain("%s\n", line)
	}
	r.writePlainln("Found %d of %d songs", found, len(results))
	return err
}

// Chart prints the scraped entries for a year.
func (r *Runner) Chart(ctx context.Context, cmd *cli.Command) error {
	year := cmd.Int("year")
	if err := validateYear(year); err != nil {
		return err
	}

	source, err := r.chartSource()
	if err != nil {
		return err
	}

	entries, err := source.TopEntries(ctx, year)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: year %d", shared.ErrNoChartData, year)
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(entries, true)
	case cmd.Bool("csv"):
		data, err := formatter.EntriesToCSV(entries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.EntriesToText(year, entries))
	}
}

// runWithProgress runs fn and prints each progress message as a line.
func (r *Runner) runWithProgress(ctx context.Context, fn buildFunc) (*models.BuildSummary, error) {
	progress := make(chan tasks.ProgressUpdate, 128)
	type outcome struct {
		summary *models.BuildSummary
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		summary, err := fn(ctx, progress)
		done <- outcome{summary, err}
	}()

	show := func(u tasks.ProgressUpdate) {
		switch u.Phase {
		case tasks.Authorize:
			r.writePlain("→ %s\n  %s\n", u.Message, u.Data)
		case tasks.Complete:
		default:
			r.writePlain("%s\n", u.Message)
		}
	}

	for {
		select {
		case u := <-progress:
			show(u)
		case out := <-done:
			drain(progress, show)
			return out.summary, out.err
		}
	}
}

// drain forwards whatever is still buffered in ch without blocking.
func drain(ch <-chan tasks.ProgressUpdate, fn func(tasks.ProgressUpdate)) {
	for {
		select {
		case u := <-ch:
			fn(u)
		default:
			return
		}
	}
}

// writeSummary writes the rendered summary to a file when save is set or path is given, and to
// the runner's output otherwise. An empty path with save uses billboard_<year>.<ext>.
func (r *Runner) writeSummary(summary *models.BuildSummary, format formatter.Format, path string, save bool) error {
	if save || path != "" {
		written, err := formatter.WriteSummary(summary, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("summary written", "path", written)
		return r.writePlain("✓ Summary written to %s\n", written)
	}

	data, err := formatter.RenderSummary(summary, format)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	return r.writePlain("%s\n", data)
}

func validateYear(year int) error {
	if year == 0 {
		return fmt.Errorf("%w: --year", shared.ErrMissingArgument)
	}
	return charts.ValidateYear(year)
}
