package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"golang.org/x/oauth2"
)

// SessionRepository persists OAuth sessions keyed by account name.
//
// The token is stored as JSON so refresh tokens and expiry survive restarts.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Load retrieves the cached session for account.
//
// Returns [shared.ErrSessionNotFound] when nothing is cached.
func (r *SessionRepository) Load(ctx context.Context, account string) (*models.Session, error) {
	query := `SELECT token FROM sessions WHERE account = ?`

	var raw string
	err := r.db.QueryRowContext(ctx, query, account).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}

	return &models.Session{Account: account, Token: &token}, nil
}

// Save inserts or replaces the cached session for session.Account.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	if session == nil || session.Token == nil {
		return fmt.Errorf("%w: session has no token", shared.ErrInvalidInput)
	}
	if session.Account == "" {
		return fmt.Errorf("%w: session has no account", shared.ErrInvalidInput)
	}

	raw, err := shared.MarshalJSON(session.Token, false)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	query := `
		INSERT INTO sessions (account, token, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`

	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, session.Account, string(raw), now, now); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes the cached session for account. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, account string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE account = ?`, account); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
