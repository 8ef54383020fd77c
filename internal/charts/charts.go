// Package charts fetches year-end chart entries.
//
// [BillboardSource] scrapes the public Billboard Year-End Hot 100 page. [CachedSource] wraps any
// [Source] with a read-through [Store] so a year is scraped once.
package charts

import (
	"context"
	"fmt"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

const (
	// MaxEntries is the chart length; extra rows on the page are dropped.
	MaxEntries = 100

	minYear = 1940
	maxYear = 2030
)

// Source returns the ordered entries of a year-end chart.
//
// An empty, non-nil slice means the page was reachable but yielded no songs.
type Source interface {
	TopEntries(ctx context.Context, year int) ([]models.ChartEntry, error)
}

// Store persists chart entries per year.
type Store interface {
	Get(year int) ([]models.ChartEntry, error)
	Put(year int, entries []models.ChartEntry) error
}

// ValidateYear accepts years strictly between 1940 and 2030.
func ValidateYear(year int) error {
	if year <= minYear || year >= maxYear {
		return fmt.Errorf("%w: %d (expected %d-%d)", shared.ErrInvalidYear, year, minYear+1, maxYear-1)
	}
	return nil
}
