package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ScanEventStore = (*ScanEventRepo)(nil)

// ScanEventRepo is the SQLite implementation of the ScanEventStore port interface.
type ScanEventRepo struct {
	db *DB
}

// NewScanEventRepo creates a new ScanEventRepo backed by the given DB.
func NewScanEventRepo(db *DB) *ScanEventRepo {
	return &ScanEventRepo{db: db}
}

// Record appends one event to the audit trail.
func (r *ScanEventRepo) Record(ctx context.Context, e model.ScanEvent) error {
	const query = `INSERT INTO scan_events (attendee_id, source, status, detail, occurred_at) VALUES (?, ?, ?, ?, ?)`

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query, e.AttendeeID, string(e.Source), string(e.Status), e.Detail, formatTime(occurredAt))
	if err != nil {
		return fmt.Errorf("record scan event: %w", classify(err))
	}

	return nil
}

// ListRecent returns the newest events first.
func (r *ScanEventRepo) ListRecent(ctx context.Context, limit int) ([]model.ScanEvent, error) {
	const query = `SELECT id, attendee_id, source, status, detail, occurred_at FROM scan_events
		ORDER BY occurred_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", classify(err))
	}
	defer rows.Close()

	var events []model.ScanEvent
	for rows.Next() {
		var (
			e              model.ScanEvent
			attendeeID     sql.NullInt64
			source, status string
			occurredAt     string
		)
		if err := rows.Scan(&e.ID, &attendeeID, &source, &status, &e.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if attendeeID.Valid {
			id := attendeeID.Int64
			e.AttendeeID = &id
		}
		e.Source = model.CheckInSource(source)
		e.Status = model.CheckInStatus(status)
		e.OccurredAt, err = parseTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan events: %w", classify(err))
	}

	return events, nil
}
