package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// SessionSweeper periodically deletes expired admin sessions.
type SessionSweeper struct {
	sessions driven.SessionStore
	interval time.Duration
	now      func() time.Time
}

// NewSessionSweeper creates a SessionSweeper running every interval.
func NewSessionSweeper(sessions driven.SessionStore, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{sessions: sessions, interval: interval, now: time.Now}
}

// Start sweeps immediately, then on every tick. Start blocks until the
// context is canceled.
func (s *SessionSweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("expired sessions removed", "count", n)
	}
}
