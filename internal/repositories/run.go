package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
)

// RunRepository persists curation runs and their removals.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts run and its removals in one transaction, assigning the sequence
// and, when empty, the ID.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	sequence, err := NextSequence(ctx, r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	run.Sequence = sequence
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (
			id, sequence, account, playlist_id, rule, dry_run, surfaced, accepted,
			rejected, auto_rejected, committed, failed, exhausted, started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Sequence,
		run.Account,
		run.PlaylistID,
		run.Rule,
		run.DryRun,
		run.Surfaced,
		run.Accepted,
		run.Rejected,
		run.AutoRejected,
		run.Committed,
		run.Failed,
		run.Exhausted,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	removal := `
		INSERT OR IGNORE INTO removals (run_id, position, track_id, playlist_position, name, artist, reason, committed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, rm := range run.Removals {
		var errorMessage any = rm.Error
		if rm.Error == "" {
			errorMessage = nil
		}

		if _, err := tx.ExecContext(ctx, removal, run.ID, i, rm.TrackID, rm.Position, rm.Name, rm.Artist, string(rm.Reason), rm.Committed, errorMessage); err != nil {
			return fmt.Errorf("failed to insert removal %s: %w", rm.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID or by sequence number, with its removals.
func (r *RunRepository) Get(ctx context.Context, idOrSequence string) (*models.Run, error) {
	query := `
		SELECT id, sequence, account, playlist_id, rule, dry_run, surfaced, accepted,
			rejected, auto_rejected, committed, failed, exhausted, started_at, finished_at
		FROM runs
		WHERE id = ? OR CAST(sequence AS TEXT) = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, idOrSequence, idOrSequence))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", idOrSequence)
	}
	if err != nil {
		return nil, err
	}

	run.Removals, err = r.Removals(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported criteria: "playlist_id" (string), "account" (string), "limit" (int).
// Removals are not loaded.
func (r *RunRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Run, error) {
	query := `
		SELECT id, sequence, account, playlist_id, rule, dry_run, surfaced, accepted,
			rejected, auto_rejected, committed, failed, exhausted, started_at, finished_at
		FROM runs
		WHERE 1 = 1
	`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	if account, ok := criteria["account"].(string); ok && account != "" {
		query += " AND account = ?"
		args = append(args, account)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
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

// Removals retrieves the removals recorded for runID in commit order.
func (r *RunRepository) Removals(ctx context.Context, runID string) ([]models.Removal, error) {
	query := `
		SELECT track_id, playlist_position, name, artist, reason, committed, error
		FROM removals
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query removals: %w", err)
	}
	defer rows.Close()

	var removals []models.Removal
	for rows.Next() {
		var (
			rm           models.Removal
			reason       string
			errorMessage sql.NullString
		)

		if err := rows.Scan(&rm.TrackID, &rm.Position, &rm.Name, &rm.Artist, &reason, &rm.Committed, &errorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan removal: %w", err)
		}

		rm.Reason = models.Reason(reason)
		rm.Error = errorMessage.String
		removals = append(removals, rm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return removals, nil
}

// Delete removes a run; its removals cascade.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.Run]
func scanRun(row scanner) (*models.Run, error) {
	var run models.Run

	err := row.Scan(
		&run.ID,
		&run.Sequence,
		&run.Account,
		&run.PlaylistID,
		&run.Rule,
		&run.DryRun,
		&run.Surfaced,
		&run.Accepted,
		&run.Rejected,
		&run.AutoRejected,
		&run.Committed,
		&run.Failed,
		&run.Exhausted,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return &run, nil
}
