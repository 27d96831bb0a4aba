package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	const query = `INSERT INTO sessions (token_hash, subject, created_at, expires_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query, s.TokenHash, s.Subject, formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create session: %w", classify(err))
	}

	return nil
}

// Get returns the live session for tokenHash.
func (r *SessionRepo) Get(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	const query = `SELECT token_hash, subject, created_at, expires_at FROM sessions
		WHERE token_hash = ? AND expires_at > ?`

	var (
		s                    model.Session
		createdAt, expiresAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, tokenHash, formatTime(now)).
		Scan(&s.TokenHash, &s.Subject, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", classify(err))
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &s, nil
}

// Extend moves the expiry of a live session.
func (r *SessionRepo) Extend(ctx context.Context, tokenHash string, expiresAt time.Time, now time.Time) error {
	const query = `UPDATE sessions SET expires_at = ? WHERE token_hash = ? AND expires_at > ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(expiresAt), tokenHash, formatTime(now))
	if err != nil {
		return fmt.Errorf("extend session: %w", classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return driven.ErrSessionNotFound
	}

	return nil
}

// Delete removes a session. Missing sessions are not an error.
func (r *SessionRepo) Delete(ctx context.Context, tokenHash string) error {
	const query = `DELETE FROM sessions WHERE token_hash = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", classify(err))
	}

	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", classify(err))
	}

	return result.RowsAffected()
}
