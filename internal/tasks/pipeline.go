package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/charts"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// HistoryRecorder persists finished builds (repositories.BuildRepository).
type HistoryRecorder interface {
	Create(build *models.BuildRecord) error
}

// Pipeline runs the whole year → playlist flow: fetch the chart, build, record.
type Pipeline struct {
	source  charts.Source
	engine  Engine
	history HistoryRecorder
	logger  *log.Logger
}

// NewPipeline creates a Pipeline. history may be nil.
func NewPipeline(source charts.Source, engine Engine, history HistoryRecorder, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{source: source, engine: engine, history: history, logger: logger}
}

func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Entries fetches the chart for year. An empty chart is [shared.ErrNoChartData].
func (p *Pipeline) Entries(ctx context.Context, year int, progress chan<- ProgressUpdate) ([]models.ChartEntry, error) {
	if err := charts.ValidateYear(year); err != nil {
		return nil, err
	}

	p.sendProgress(progress, FetchChartUpdate(year, nil))
	entries, err := p.source.TopEntries(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: year %d", shared.ErrNoChartData, year)
	}

	p.sendProgress(progress, FetchChartUpdate(year, entries))
	return entries, nil
}

// Build fetches the chart for year and builds its playlist.
//
// Once the engine has run, the outcome is recorded whether or not it succeeded. Recording
// failures are logged and never change the returned result.
func (p *Pipeline) Build(ctx context.Context, year int, progress chan<- ProgressUpdate) (*models.BuildSummary, error) {
	entries, err := p.Entries(ctx, year, progress)
	if err != nil {
		return nil, err
	}

	summary, err := p.engine.Build(ctx, BuildRequest{Year: year, Entries: entries}, progress)
	p.record(year, summary, err)
	return summary, err
}

// Preview fetches the chart for year and searches every entry without creating a playlist.
func (p *Pipeline) Preview(ctx context.Context, year int, progress chan<- ProgressUpdate) ([]PreviewResult, error) {
	entries, err := p.Entries(ctx, year, progress)
	if err != nil {
		return nil, err
	}
	return p.engine.Preview(ctx, entries, progress)
}

func (p *Pipeline) record(year int, summary *models.BuildSummary, buildErr error) {
	if p.history == nil {
		return
	}

	status := models.BuildCompleted
	switch {
	case errors.Is(buildErr, shared.ErrBuildCanceled):
		status = models.BuildCanceled
	case buildErr != nil:
		status = models.BuildFailed
	}

	rec := models.NewBuildRecord(0, year, summary, status, buildErr)
	if err := p.history.Create(rec); err != nil {
		p.logger.Warn("failed to record build", "year", year, "error", err)
		return
	}
	p.logger.Debug("build recorded", "id", rec.ID(), "sequence", rec.Sequence(), "status", status)
}
