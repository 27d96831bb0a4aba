package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AttendeeStore = (*AttendeeRepo)(nil)

const attendeeColumns = `id, name, ticket_id, email, token, used, scan_time, scan_attempt, photo IS NOT NULL, created_at`

// AttendeeRepo is the SQLite implementation of the AttendeeStore port interface.
type AttendeeRepo struct {
	db *DB
}

// NewAttendeeRepo creates a new AttendeeRepo backed by the given DB.
func NewAttendeeRepo(db *DB) *AttendeeRepo {
	return &AttendeeRepo{db: db}
}

// Create inserts a new unused attendee.
func (r *AttendeeRepo) Create(ctx context.Context, a model.Attendee) (*model.Attendee, error) {
	const query = `INSERT INTO attendees (name, ticket_id, email, token, used, scan_time, created_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?) RETURNING id`

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	var id int64
	err := r.db.Writer.QueryRowContext(ctx, query, a.Name, a.TicketID, a.Email, a.Token, formatTime(createdAt)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create attendee %s: %w", a.TicketID, classifyUnique(err))
	}

	return &model.Attendee{
		ID:        id,
		Name:      a.Name,
		TicketID:  a.TicketID,
		Email:     a.Email,
		Token:     a.Token,
		CreatedAt: createdAt,
	}, nil
}

// GetByID retrieves an attendee by id. Returns nil, nil if it does not exist.
func (r *AttendeeRepo) GetByID(ctx context.Context, id int64) (*model.Attendee, error) {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees WHERE id = ?`

	a, err := scanAttendee(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee %d: %w", id, classify(err))
	}

	return a, nil
}

// GetByToken retrieves the attendee holding token. Returns nil, nil if no
// attendee holds it.
func (r *AttendeeRepo) GetByToken(ctx context.Context, token string) (*model.Attendee, error) {
	return r.getByToken(ctx, r.db.Reader, token)
}

func (r *AttendeeRepo) getByToken(ctx context.Context, conn *sql.DB, token string) (*model.Attendee, error) {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees WHERE token = ?`

	a, err := scanAttendee(conn.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee by token: %w", classify(err))
	}

	return a, nil
}

// UpdateFields applies the non-nil fields of patch.
func (r *AttendeeRepo) UpdateFields(ctx context.Context, id int64, patch model.AttendeePatch) (*model.Attendee, error) {
	const query = `UPDATE attendees
		SET name = COALESCE(?, name), ticket_id = COALESCE(?, ticket_id), email = COALESCE(?, email)
		WHERE id = ?
		RETURNING ` + attendeeColumns

	a, err := scanAttendee(r.db.Writer.QueryRowContext(ctx, query, patch.Name, patch.TicketID, patch.Email, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update attendee %d: %w", id, classifyUnique(err))
	}

	return a, nil
}

// Delete removes an attendee by id.
func (r *AttendeeRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM attendees WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete attendee %d: %w", id, classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}

	return nil
}

// ListAll yields all attendees, newest first. The query runs when the
// sequence is ranged over, not when ListAll is called.
func (r *AttendeeRepo) ListAll(ctx context.Context) iter.Seq2[model.Attendee, error] {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees ORDER BY created_at DESC, id DESC`

	return func(yield func(model.Attendee, error) bool) {
		rows, err := r.db.Reader.QueryContext(ctx, query)
		if err != nil {
			yield(model.Attendee{}, fmt.Errorf("list attendees: %w", classify(err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAttendee(rows)
			if err != nil {
				yield(model.Attendee{}, fmt.Errorf("scan attendee: %w", err))
				return
			}
			if !yield(*a, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(model.Attendee{}, fmt.Errorf("iterate attendees: %w", classify(err)))
		}
	}
}

// Search returns attendees whose name contains q.NameContains
// (case-insensitive) and whose ticket id equals q.TicketID, for whichever
// criteria are set.
func (r *AttendeeRepo) Search(ctx context.Context, q model.SearchQuery, limit int) ([]model.Attendee, error) {
	var (
		where []string
		args  []any
	)
	if q.NameContains != "" {
		where = append(where, `lower(name) LIKE lower(?) ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.NameContains)+"%")
	}
	if q.TicketID != "" {
		where = append(where, `ticket_id = ?`)
		args = append(args, q.TicketID)
	}
	if len(where) == 0 {
		return nil, nil
	}

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search attendees: %w", classify(err))
	}
	defer rows.Close()

	var out []model.Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out = append(out, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", classify(err))
	}

	return out, nil
}

// MarkUsedByToken performs the unused -> used transition as one conditional
// UPDATE. Only the caller whose UPDATE matched a row reports transitioned,
// and only that caller's attempt is stored on the row.
func (r *AttendeeRepo) MarkUsedByToken(ctx context.Context, token string, at time.Time, attempt string) (*model.Attendee, bool, error) {
	const query = `UPDATE attendees SET used = 1, scan_time = MAX(?, created_at), scan_attempt = ?
		WHERE token = ? AND used = 0
		RETURNING ` + attendeeColumns

	a, err := scanAttendee(r.db.Writer.QueryRowContext(ctx, query, formatTime(at), attempt, token))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark attendee used: %w", classify(err))
	}

	// No row moved: either the token is unknown or someone else won.
	// Read on the writer so the result reflects the committed winner.
	a, err = r.getByToken(ctx, r.db.Writer, token)
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// MarkUsedByID is MarkUsedByToken keyed by attendee id.
func (r *AttendeeRepo) MarkUsedByID(ctx context.Context, id int64, at time.Time, attempt string) (*model.Attendee, bool, error) {
	const (
		update = `UPDATE attendees SET used = 1, scan_time = MAX(?, created_at), scan_attempt = ?
			WHERE id = ? AND used = 0
			RETURNING ` + attendeeColumns
		reread = `SELECT ` + attendeeColumns + ` FROM attendees WHERE id = ?`
	)

	a, err := scanAttendee(r.db.Writer.QueryRowContext(ctx, update, formatTime(at), attempt, id))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark attendee %d used: %w", id, classify(err))
	}

	a, err = scanAttendee(r.db.Writer.QueryRowContext(ctx, reread, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get attendee %d: %w", id, classify(err))
	}
	return a, false, nil
}

// SetPhoto stores or replaces the attendee's photo.
func (r *AttendeeRepo) SetPhoto(ctx context.Context, id int64, photo model.Photo) error {
	const query = `UPDATE attendees SET photo = ?, photo_type = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, photo.Data, photo.ContentType, id)
	if err != nil {
		return fmt.Errorf("set photo for attendee %d: %w", id, classify(err))
	}

	return requireRow(result, fmt.Sprintf("set photo for attendee %d", id))
}

// GetPhoto returns the attendee's photo, or nil, nil when none is stored.
func (r *AttendeeRepo) GetPhoto(ctx context.Context, id int64) (*model.Photo, error) {
	const query = `SELECT photo, photo_type FROM attendees WHERE id = ?`

	var (
		data        []byte
		contentType string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&data, &contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get photo for attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get photo for attendee %d: %w", id, classify(err))
	}
	if data == nil {
		return nil, nil
	}

	return &model.Photo{ContentType: contentType, Data: data}, nil
}

// DeletePhoto removes the attendee's photo.
func (r *AttendeeRepo) DeletePhoto(ctx context.Context, id int64) error {
	const query = `UPDATE attendees SET photo = NULL, photo_type = '' WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete photo for attendee %d: %w", id, classify(err))
	}

	return requireRow(result, fmt.Sprintf("delete photo for attendee %d", id))
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrAttendeeNotFound)
	}
	return nil
}

// ResetScan moves one attendee back to unused.
func (r *AttendeeRepo) ResetScan(ctx context.Context, id int64) error {
	const query = `UPDATE attendees SET used = 0, scan_time = NULL, scan_attempt = NULL WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reset attendee %d: %w", id, classify(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("reset attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}

	return nil
}

// ResetAll moves every used attendee back to unused.
func (r *AttendeeRepo) ResetAll(ctx context.Context) (int64, error) {
	const query = `UPDATE attendees SET used = 0, scan_time = NULL, scan_attempt = NULL WHERE used = 1`

	result, err := r.db.Writer.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reset all attendees: %w", classify(err))
	}

	return result.RowsAffected()
}

// ClearAll deletes every attendee.
func (r *AttendeeRepo) ClearAll(ctx context.Context) (int64, error) {
	const query = `DELETE FROM attendees`

	result, err := r.db.Writer.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("clear attendees: %w", classify(err))
	}

	return result.RowsAffected()
}

// Stats counts total and used attendees.
func (r *AttendeeRepo) Stats(ctx context.Context) (model.Stats, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(used), 0) FROM attendees`

	var s model.Stats
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&s.Total, &s.Used); err != nil {
		return model.Stats{}, fmt.Errorf("attendee stats: %w", classify(err))
	}
	s.Pending = s.Total - s.Used

	return s, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAttendee(s scanner) (*model.Attendee, error) {
	var (
		a         model.Attendee
		used      int
		scanTime  sql.NullString
		attempt   sql.NullString
		hasPhoto  int
		createdAt string
	)

	err := s.Scan(&a.ID, &a.Name, &a.TicketID, &a.Email, &a.Token, &used, &scanTime, &attempt, &hasPhoto, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Used = used == 1
	a.ScanAttempt = attempt.String
	a.HasPhoto = hasPhoto == 1
	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if scanTime.Valid {
		t, err := parseTime(scanTime.String)
		if err != nil {
			return nil, fmt.Errorf("parse scan_time: %w", err)
		}
		a.ScanTime = &t
	}

	return &a, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
