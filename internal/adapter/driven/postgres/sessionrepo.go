package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the PostgreSQL implementation of the SessionStore port interface.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given pool.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	const query = `INSERT INTO sessions (token_hash, subject, created_at, expires_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Pool.Exec(ctx, query, s.TokenHash, s.Subject, s.CreatedAt.UTC(), s.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("create session: %w", classify(err))
	}
	return nil
}

// Get returns the live session for tokenHash.
func (r *SessionRepo) Get(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	const query = `SELECT token_hash, subject, created_at, expires_at FROM sessions
		WHERE token_hash = $1 AND expires_at > $2`

	var s model.Session
	err := r.db.Pool.QueryRow(ctx, query, tokenHash, now.UTC()).Scan(&s.TokenHash, &s.Subject, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, driven.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", classify(err))
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return &s, nil
}

// Extend moves the expiry of a live session.
func (r *SessionRepo) Extend(ctx context.Context, tokenHash string, expiresAt time.Time, now time.Time) error {
	const query = `UPDATE sessions SET expires_at = $1 WHERE token_hash = $2 AND expires_at > $3`

	tag, err := r.db.Pool.Exec(ctx, query, expiresAt.UTC(), tokenHash, now.UTC())
	if err != nil {
		return fmt.Errorf("extend session: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return driven.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session. Missing sessions are not an error.
func (r *SessionRepo) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", classify(err))
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}
