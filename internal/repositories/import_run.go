package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/shared"
)

// ImportRunRepository implements models.Repository[*models.ImportRun] for import history.
//
// Per-playlist outcomes and unmatched items live in child tables keyed by run id and are
// removed with their run.
type ImportRunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.ImportRun] = (*ImportRunRepository)(nil)

// NewImportRunRepository creates a new ImportRunRepository with the given database connection
func NewImportRunRepository(db *sql.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

const importRunColumns = `
	id, sequence, source_file, server_name, status, playlists_total,
	summary, error_message, started_at, finished_at, created_at, updated_at, deleted_at
`

// Create inserts a new run with a generated ID and sequence
func (r *ImportRunRepository) Create(run *models.ImportRun) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(tx, "import_runs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		run.SetID(shared.GenerateID())
		run.SetSequence(sequence)

		if err := run.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		query := `
			INSERT INTO import_runs (
				id, sequence, source_file, server_name, status, playlists_total,
				summary, error_message, started_at, finished_at, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err = tx.Exec(query,
			run.ID(),
			run.Sequence(),
			run.SourceFile(),
			run.ServerName(),
			string(run.Status()),
			run.PlaylistsTotal(),
			run.Summary(),
			nullString(run.ErrorMessage()),
			run.StartedAt(),
			run.FinishedAt(),
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert import run: %w", err)
		}
		return nil
	})
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *ImportRunRepository) Get(id string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its sequence number, the id shown by `plexio history list`.
func (r *ImportRunRepository) GetBySequence(sequence int) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE sequence = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, sequence))
}

// Update writes the mutable result columns of run
func (r *ImportRunRepository) Update(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE import_runs
		SET status = ?, playlists_total = ?, summary = ?, error_message = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		run.PlaylistsTotal(),
		run.Summary(),
		nullString(run.ErrorMessage()),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}
	return expectOneRow(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *ImportRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE import_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete import run: %w", err)
	}
	return expectOneRow(result, id)
}

// List retrieves runs matching criteria, newest first.
//
// Supported criteria: "status" and "server_name" (string), "limit" (int).
func (r *ImportRunRepository) List(criteria map[string]any) ([]*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if server, ok := criteria["server_name"].(string); ok && server != "" {
		query += " AND server_name = ?"
		args = append(args, server)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.ImportRun{}
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// SaveOutcomes replaces the outcomes stored for runID.
func (r *ImportRunRepository) SaveOutcomes(runID string, outcomes []models.OutcomeRecord) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM import_outcomes WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear outcomes: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO import_outcomes (run_id, position, source_name, target_name, matched, total, status, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare outcome insert: %w", err)
		}
		defer stmt.Close()

		for i, o := range outcomes {
			if _, err := stmt.Exec(runID, i, o.SourceName, o.TargetName, o.Matched, o.Total, o.Status, o.Message); err != nil {
				return fmt.Errorf("failed to insert outcome %s: %w", o.SourceName, err)
			}
		}
		return nil
	})
}

// Outcomes returns the outcomes of runID in import order.
func (r *ImportRunRepository) Outcomes(runID string) ([]models.OutcomeRecord, error) {
	rows, err := r.db.Query(`
		SELECT position, source_name, target_name, matched, total, status, message
		FROM import_outcomes WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.OutcomeRecord{}
	for rows.Next() {
		var o models.OutcomeRecord
		if err := rows.Scan(&o.Position, &o.SourceName, &o.TargetName, &o.Matched, &o.Total, &o.Status, &o.Message); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}

// SaveMissing replaces the unmatched items stored for runID.
func (r *ImportRunRepository) SaveMissing(runID string, items []models.MissingRecord) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM missing_items WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear missing items: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO missing_items (run_id, playlist, title, year, type, imdb_id, rating_key)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare missing item insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range items {
			var year any
			if m.Year != nil {
				year = *m.Year
			}
			if _, err := stmt.Exec(runID, m.Playlist, m.Title, year, m.Type, nullString(m.IMDbID), nullString(m.RatingKey)); err != nil {
				return fmt.Errorf("failed to insert missing item %s: %w", m.Title, err)
			}
		}
		return nil
	})
}

// Missing returns the unmatched items of runID in insertion order.
func (r *ImportRunRepository) Missing(runID string) ([]models.MissingRecord, error) {
	rows, err := r.db.Query(`
		SELECT playlist, title, year, type, imdb_id, rating_key
		FROM missing_items WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing items: %w", err)
	}
	defer rows.Close()

	items := []models.MissingRecord{}
	for rows.Next() {
		var (
			m         models.MissingRecord
			year      sql.NullInt64
			imdbID    sql.NullString
			ratingKey sql.NullString
		)
		if err := rows.Scan(&m.Playlist, &m.Title, &year, &m.Type, &imdbID, &ratingKey); err != nil {
			return nil, fmt.Errorf("failed to scan missing item: %w", err)
		}
		if year.Valid {
			y := int(year.Int64)
			m.Year = &y
		}
		m.IMDbID = imdbID.String
		m.RatingKey = ratingKey.String
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one import_runs row from a [sql.Row] or [sql.Rows]
func (r *ImportRunRepository) scan(row scanner) (*models.ImportRun, error) {
	var (
		id             string
		sequence       int
		sourceFile     string
		serverName     string
		status         string
		playlistsTotal int
		summary        string
		errorMessage   sql.NullString
		startedAt      time.Time
		finishedAt     sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &sourceFile, &serverName, &status, &playlistsTotal,
		&summary, &errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: import run", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}

	run := models.NewImportRun(sequence, sourceFile, serverName)
	run.SetID(id)
	run.SetPlaylistsTotal(playlistsTotal)
	run.Restore(models.RunStatus(status), summary, errorMessage.String)

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	run.SetTimes(startedAt, finished, createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: import run %s not found or already deleted", shared.ErrNotFound, id)
	}
	return nil
}
