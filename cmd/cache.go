package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// CacheList shows which chart years are cached locally.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	years, err := repositories.NewChartRepository(db).Years()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(years, true)
	}

	if len(years) == 0 {
		return r.writePlain("Chart cache is empty.\n")
	}

	r.writePlainHeader("Cached Charts")
	for _, y := range years {
		r.writePlain("%d  %3d entries  fetched %s\n", y.Year, y.Entries, y.FetchedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// CacheClear removes cached chart entries for one year, or all years.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewChartRepository(db)

	var removed int64
	if year := cmd.Int("year"); year > 0 {
		removed, err = repo.Delete(year)
		if err == nil {
			r.logger.Info("cleared chart cache", "year", year, "rows", removed)
		}
	} else {
		removed, err = repo.Clear()
		if err == nil {
			r.logger.Info("cleared chart cache", "rows", removed)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	return r.writePlain("✓ Removed %d cached entries\n", removed)
}
