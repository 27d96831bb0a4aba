package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// ErrSessionNotFound indicates no live session matches the token hash.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore defines the driven port for admin session persistence.
// Expired sessions must never be returned by Get.
type SessionStore interface {
	Create(ctx context.Context, s model.Session) error

	// Get returns ErrSessionNotFound when the session is missing or expired.
	Get(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error)

	// Extend moves the expiry of a live session. Returns ErrSessionNotFound
	// when the session is missing or already expired.
	Extend(ctx context.Context, tokenHash string, expiresAt time.Time, now time.Time) error

	// Delete is a no-op when the session does not exist.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes sessions expired at now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
