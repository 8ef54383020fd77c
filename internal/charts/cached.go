package charts

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// CachedSource serves entries from a [Store] and falls back to the wrapped [Source] on a miss.
//
// Empty results are not cached, so a year that failed to parse is retried next time.
type CachedSource struct {
	source Source
	store  Store
	logger *log.Logger
}

// NewCachedSource wraps source with store.
func NewCachedSource(source Source, store Store, logger *log.Logger) *CachedSource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CachedSource{source: source, store: store, logger: logger}
}

// TopEntries implements [Source].
func (c *CachedSource) TopEntries(ctx context.Context, year int) ([]models.ChartEntry, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}

	cached, err := c.store.Get(year)
	if err != nil {
		c.logger.Warn("chart cache read failed", "year", year, "error", err)
	} else if len(cached) > 0 {
		c.logger.Debug("chart cache hit", "year", year, "songs", len(cached))
		return cached, nil
	}

	entries, err := c.source.TopEntries(ctx, year)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		if err := c.store.Put(year, entries); err != nil {
			c.logger.Warn("chart cache write failed", "year", year, "error", err)
		}
	}
	return entries, nil
}
