package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/models"
)

// ChartYear summarizes one cached chart.
type ChartYear struct {
	Year      int
	Entries   int
	FetchedAt time.Time
}

// ChartRepository caches scraped chart entries per year. It satisfies charts.Store.
type ChartRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewChartRepository creates a new ChartRepository with the given database connection
func NewChartRepository(db *sql.DB) *ChartRepository {
	return &ChartRepository{db: db, now: time.Now}
}

// Get returns the cached entries for year in chart order, or an empty slice on a miss.
func (r *ChartRepository) Get(year int) ([]models.ChartEntry, error) {
	rows, err := r.db.Query(`
		SELECT position, title, artist
		FROM chart_entries
		WHERE year = ?
		ORDER BY position ASC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart entries: %w", err)
	}
	defer rows.Close()

	entries := []models.ChartEntry{}
	for rows.Next() {
		var e models.ChartEntry
		if err := rows.Scan(&e.Position, &e.Title, &e.Artist); err != nil {
			return nil, fmt.Errorf("failed to scan chart entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Put replaces the cached entries for year.
func (r *ChartRepository) Put(year int, entries []models.ChartEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chart_entries WHERE year = ?", year); err != nil {
		return fmt.Errorf("failed to clear chart entries: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chart_entries (year, position, title, artist, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chart insert: %w", err)
	}
	defer stmt.Close()

	fetchedAt := r.now()
	for _, e := range entries {
		if _, err := stmt.Exec(year, e.Position, e.Title, e.Artist, fetchedAt); err != nil {
			return fmt.Errorf("failed to insert chart entry %d: %w", e.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chart entries: %w", err)
	}
	return nil
}

// Years lists cached charts in ascending year order.
func (r *ChartRepository) Years() ([]ChartYear, error) {
	rows, err := r.db.Query(`
		SELECT year, COUNT(*)
		FROM chart_entries
		GROUP BY year
		ORDER BY year ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart years: %w", err)
	}

	var years []ChartYear
	for rows.Next() {
		var y ChartYear
		if err := rows.Scan(&y.Year, &y.Entries); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan chart year: %w", err)
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// Aggregates lose the column type, so fetched_at is read from a plain row.
	for i := range years {
		err := r.db.QueryRow("SELECT fetched_at FROM chart_entries WHERE year = ? LIMIT 1", years[i].Year).Scan(&years[i].FetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read fetch time for %d: %w", years[i].Year, err)
		}
	}
	return years, nil
}

// Delete removes the cached entries for year and reports how many rows were removed.
func (r *ChartRepository) Delete(year int) (int64, error) {
	result, err := r.db.Exec("DELETE FROM chart_entries WHERE year = ?", year)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chart entries: %w", err)
	}
	return result.RowsAffected()
}

// Clear removes every cached chart.
func (r *ChartRepository) Clear() (int64, error) {
	result, err := r.db.Exec("DELETE FROM chart_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to clear chart cache: %w", err)
	}
	return result.RowsAffected()
}
