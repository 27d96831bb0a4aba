package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ScanEventStore = (*ScanEventRepo)(nil)

// ScanEventRepo is the PostgreSQL implementation of the ScanEventStore port interface.
type ScanEventRepo struct {
	db *DB
}

// NewScanEventRepo creates a new ScanEventRepo backed by the given pool.
func NewScanEventRepo(db *DB) *ScanEventRepo {
	return &ScanEventRepo{db: db}
}

// Record appends one event to the audit trail.
func (r *ScanEventRepo) Record(ctx context.Context, e model.ScanEvent) error {
	const query = `INSERT INTO scan_events (attendee_id, source, status, detail, occurred_at) VALUES ($1, $2, $3, $4, $5)`

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := r.db.Pool.Exec(ctx, query, e.AttendeeID, string(e.Source), string(e.Status), e.Detail, occurredAt.UTC())
	if err != nil {
		return fmt.Errorf("record scan event: %w", classify(err))
	}
	return nil
}

// ListRecent returns the newest events first.
func (r *ScanEventRepo) ListRecent(ctx context.Context, limit int) ([]model.ScanEvent, error) {
	const query = `SELECT id, attendee_id, source, status, detail, occurred_at FROM scan_events
		ORDER BY occurred_at DESC, id DESC LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", classify(err))
	}
	defer rows.Close()

	var events []model.ScanEvent
	for rows.Next() {
		var (
			e              model.ScanEvent
			source, status string
		)
		if err := rows.Scan(&e.ID, &e.AttendeeID, &source, &status, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Source = model.CheckInSource(source)
		e.Status = model.CheckInStatus(status)
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan events: %w", classify(err))
	}

	return events, nil
}
