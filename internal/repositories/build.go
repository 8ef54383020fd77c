package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

const buildColumns = `id, sequence, year, playlist_id, playlist_name, playlist_url, status,
	matched_count, not_found_count, errored_count, error_message, created_at, updated_at, deleted_at`

// BuildRepository implements models.Repository[*models.BuildRecord] for build history.
//
// A build and its results are written in one transaction.
type BuildRepository struct {
	db *sql.DB
}

// NewBuildRepository creates a new BuildRepository with the given database connection
func NewBuildRepository(db *sql.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// Create inserts a build and its results with a generated ID and sequence
func (r *BuildRepository) Create(build *models.BuildRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequenceTx(tx, "builds")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	build.SetID(shared.GenerateID())
	build.SetSequence(sequence)

	if err := build.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO builds (id, sequence, year, playlist_id, playlist_name, playlist_url, status,
			matched_count, not_found_count, errored_count, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		build.ID(),
		build.Sequence(),
		build.Year(),
		nullString(build.PlaylistID()),
		build.PlaylistName(),
		nullString(build.PlaylistURL()),
		string(build.Status()),
		build.MatchedCount(),
		build.NotFoundCount(),
		build.ErroredCount(),
		nullString(build.ErrorMessage()),
		build.CreatedAt(),
		build.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO build_results (build_id, position, title, artist, outcome, track_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range build.Results() {
		_, err := stmt.Exec(
			build.ID(),
			res.Entry.Position,
			res.Entry.Title,
			res.Entry.Artist,
			res.Outcome.String(),
			nullString(res.TrackID),
			nullString(res.ErrorString()),
		)
		if err != nil {
			return fmt.Errorf("failed to insert result %d: %w", res.Entry.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}
	return nil
}

// Get retrieves a build by ID with its results, excluding soft-deleted builds
func (r *BuildRepository) Get(id string) (*models.BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE id = ? AND deleted_at IS NULL`

	build, err := scanBuild(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	results, err := r.Results(id)
	if err != nil {
		return nil, err
	}
	build.SetResults(results)
	return build, nil
}

// Latest returns the most recent build for year.
func (r *BuildRepository) Latest(year int) (*models.BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE year = ? AND deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return scanBuild(r.db.QueryRow(query, year))
}

// Delete soft-deletes a build by ID
func (r *BuildRepository) Delete(id string) error {
	now := time.Now()

	result, err := r.db.Exec(`UPDATE builds SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete build: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrBuildNotFound, id)
	}

	return nil
}

// List retrieves builds newest first, excluding soft-deleted builds.
//
// Supported criteria: "year" (int), "status" (models.BuildStatus or string), "limit" (int).
// Results are not loaded; use [BuildRepository.Results].
func (r *BuildRepository) List(criteria map[string]any) ([]*models.BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE deleted_at IS NULL`
	args := []any{}

	if year, ok := criteria["year"].(int); ok && year > 0 {
		query += " AND year = ?"
		args = append(args, year)
	}

	switch status := criteria["status"].(type) {
	case models.BuildStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query builds: %w", err)
	}
	defer rows.Close()

	var builds []*models.BuildRecord
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, build)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return builds, nil
}

// Results returns the per-entry results of a build in chart order.
func (r *BuildRepository) Results(buildID string) ([]models.MatchResult, error) {
	rows, err := r.db.Query(`
		SELECT position, title, artist, outcome, track_id, error
		FROM build_results
		WHERE build_id = ?
		ORDER BY position ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query build results: %w", err)
	}
	defer rows.Close()

	results := []models.MatchResult{}
	for rows.Next() {
		var (
			res     models.MatchResult
			outcome string
			trackID sql.NullString
			errText sql.NullString
		)

		if err := rows.Scan(&res.Entry.Position, &res.Entry.Title, &res.Entry.Artist, &outcome, &trackID, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan build result: %w", err)
		}

		if res.Outcome, err = models.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		res.TrackID = trackID.String
		if errText.Valid {
			res.Err = errors.New(errText.String)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBuild scans a row from either [sql.Row] or [sql.Rows] into a [models.BuildRecord]
func scanBuild(row rowScanner) (*models.BuildRecord, error) {
	var (
		id           string
		sequence     int
		year         int
		playlistID   sql.NullString
		playlistName string
		playlistURL  sql.NullString
		status       string
		matched      int
		notFound     int
		errored      int
		errorMessage sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &year, &playlistID, &playlistName, &playlistURL, &status,
		&matched, &notFound, &errored, &errorMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrBuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan build: %w", err)
	}

	build := models.RestoreBuildRecord(id, sequence, year, playlistID.String, playlistName, playlistURL.String,
		models.BuildStatus(status), matched, notFound, errored, errorMessage.String, createdAt, updatedAt)
	if deletedAt.Valid {
		build.SetDeletedAt(&deletedAt.Time)
	}
	return build, nil
}
