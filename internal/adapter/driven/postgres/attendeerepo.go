package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AttendeeStore = (*AttendeeRepo)(nil)

const attendeeColumns = `id, name, ticket_id, email, token, used, scan_time, scan_attempt, photo IS NOT NULL, created_at`

// AttendeeRepo is the PostgreSQL implementation of the AttendeeStore port interface.
type AttendeeRepo struct {
	db *DB
}

// NewAttendeeRepo creates a new AttendeeRepo backed by the given pool.
func NewAttendeeRepo(db *DB) *AttendeeRepo {
	return &AttendeeRepo{db: db}
}

// Create inserts a new unused attendee.
func (r *AttendeeRepo) Create(ctx context.Context, a model.Attendee) (*model.Attendee, error) {
	const query = `INSERT INTO attendees (name, ticket_id, email, token, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING ` + attendeeColumns

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	out, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, a.Name, a.TicketID, a.Email, a.Token, createdAt.UTC()))
	if err != nil {
		return nil, fmt.Errorf("create attendee %s: %w", a.TicketID, classify(err))
	}

	return out, nil
}

// GetByID returns nil, nil when no attendee has the id.
func (r *AttendeeRepo) GetByID(ctx context.Context, id int64) (*model.Attendee, error) {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees WHERE id = $1`

	a, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee %d: %w", id, classify(err))
	}

	return a, nil
}

// GetByToken returns nil, nil when no attendee holds the token.
func (r *AttendeeRepo) GetByToken(ctx context.Context, token string) (*model.Attendee, error) {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees WHERE token = $1`

	a, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, token))
	if errors.Is(err, pgx.ErrNoRows) {
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
		SET name = COALESCE($1, name), ticket_id = COALESCE($2, ticket_id), email = COALESCE($3, email)
		WHERE id = $4
		RETURNING ` + attendeeColumns

	a, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, patch.Name, patch.TicketID, patch.Email, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update attendee %d: %w", id, classify(err))
	}

	return a, nil
}

// Delete removes an attendee by id.
func (r *AttendeeRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendee %d: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	return nil
}

// ListAll yields all attendees, newest first.
func (r *AttendeeRepo) ListAll(ctx context.Context) iter.Seq2[model.Attendee, error] {
	const query = `SELECT ` + attendeeColumns + ` FROM attendees ORDER BY created_at DESC, id DESC`

	return func(yield func(model.Attendee, error) bool) {
		rows, err := r.db.Pool.Query(ctx, query)
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

// Search returns attendees matching every criterion set in q.
func (r *AttendeeRepo) Search(ctx context.Context, q model.SearchQuery, limit int) ([]model.Attendee, error) {
	var (
		where []string
		args  []any
	)
	if q.NameContains != "" {
		args = append(args, "%"+escapeLike(q.NameContains)+"%")
		where = append(where, `name ILIKE $`+strconv.Itoa(len(args))+` ESCAPE '\'`)
	}
	if q.TicketID != "" {
		args = append(args, q.TicketID)
		where = append(where, `ticket_id = $`+strconv.Itoa(len(args)))
	}
	if len(where) == 0 {
		return nil, nil
	}
	args = append(args, limit)

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
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
// UPDATE; row locking makes concurrent losers re-evaluate used and match nothing.
// The winner's attempt is written in the same statement.
func (r *AttendeeRepo) MarkUsedByToken(ctx context.Context, token string, at time.Time, attempt string) (*model.Attendee, bool, error) {
	const query = `UPDATE attendees SET used = TRUE, scan_time = GREATEST($1, created_at), scan_attempt = $2
		WHERE token = $3 AND NOT used
		RETURNING ` + attendeeColumns

	a, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, at.UTC(), attempt, token))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("mark attendee used: %w", classify(err))
	}

	a, err = r.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// MarkUsedByID is MarkUsedByToken keyed by attendee id.
func (r *AttendeeRepo) MarkUsedByID(ctx context.Context, id int64, at time.Time, attempt string) (*model.Attendee, bool, error) {
	const query = `UPDATE attendees SET used = TRUE, scan_time = GREATEST($1, created_at), scan_attempt = $2
		WHERE id = $3 AND NOT used
		RETURNING ` + attendeeColumns

	a, err := scanAttendee(r.db.Pool.QueryRow(ctx, query, at.UTC(), attempt, id))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("mark attendee %d used: %w", id, classify(err))
	}

	a, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// SetPhoto stores or replaces the attendee's photo.
func (r *AttendeeRepo) SetPhoto(ctx context.Context, id int64, photo model.Photo) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE attendees SET photo = $1, photo_type = $2 WHERE id = $3`,
		photo.Data, photo.ContentType, id)
	if err != nil {
		return fmt.Errorf("set photo for attendee %d: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set photo for attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	return nil
}

// GetPhoto returns the attendee's photo, or nil, nil when none is stored.
func (r *AttendeeRepo) GetPhoto(ctx context.Context, id int64) (*model.Photo, error) {
	var (
		data        []byte
		contentType string
	)
	err := r.db.Pool.QueryRow(ctx, `SELECT photo, photo_type FROM attendees WHERE id = $1`, id).Scan(&data, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := r.db.Pool.Exec(ctx, `UPDATE attendees SET photo = NULL, photo_type = '' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo for attendee %d: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete photo for attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	return nil
}

// ResetScan moves one attendee back to unused.
func (r *AttendeeRepo) ResetScan(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE attendees SET used = FALSE, scan_time = NULL, scan_attempt = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset attendee %d: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reset attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	return nil
}

// ResetAll moves every used attendee back to unused.
func (r *AttendeeRepo) ResetAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE attendees SET used = FALSE, scan_time = NULL, scan_attempt = NULL WHERE used`)
	if err != nil {
		return 0, fmt.Errorf("reset all attendees: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

// ClearAll deletes every attendee.
func (r *AttendeeRepo) ClearAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM attendees`)
	if err != nil {
		return 0, fmt.Errorf("clear attendees: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

// Stats counts total and used attendees.
func (r *AttendeeRepo) Stats(ctx context.Context) (model.Stats, error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE used) FROM attendees`

	var total, used int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&total, &used); err != nil {
		return model.Stats{}, fmt.Errorf("attendee stats: %w", classify(err))
	}

	return model.Stats{Total: int(total), Used: int(used), Pending: int(total - used)}, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAttendee(s scanner) (*model.Attendee, error) {
	var (
		a        model.Attendee
		scanTime *time.Time
		attempt  *string
	)

	err := s.Scan(&a.ID, &a.Name, &a.TicketID, &a.Email, &a.Token, &a.Used, &scanTime, &attempt, &a.HasPhoto, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if attempt != nil {
		a.ScanAttempt = *attempt
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if scanTime != nil {
		t := scanTime.UTC()
		a.ScanTime = &t
	}

	return &a, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
