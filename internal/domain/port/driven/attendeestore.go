package driven

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// Sentinel errors returned by AttendeeStore implementations.
var (
	// ErrAttendeeNotFound indicates the requested attendee does not exist.
	ErrAttendeeNotFound = errors.New("attendee not found")

	// ErrDuplicateTicketID indicates another attendee already holds the ticket id.
	ErrDuplicateTicketID = errors.New("duplicate ticket id")

	// ErrDuplicateToken indicates another attendee already holds the credential token.
	ErrDuplicateToken = errors.New("duplicate credential token")

	// ErrStorageUnavailable indicates the store timed out or failed at the
	// transport level. It is the only error callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// AttendeeStore defines the driven port for the attendee registry. It is the
// only component that writes attendee rows. Implementations must perform the
// MarkUsed transitions as a single conditional update in the store itself so
// that concurrent callers, in this process or another, observe exactly one
// winner.
type AttendeeStore interface {
	// Create inserts a new unused attendee and returns it with its assigned ID.
	// Returns ErrDuplicateTicketID or ErrDuplicateToken on uniqueness violations.
	Create(ctx context.Context, a model.Attendee) (*model.Attendee, error)

	// GetByID returns nil, nil when no attendee has the id.
	GetByID(ctx context.Context, id int64) (*model.Attendee, error)

	// GetByToken returns nil, nil when no attendee holds the token.
	GetByToken(ctx context.Context, token string) (*model.Attendee, error)

	// UpdateFields applies an admin edit. Returns ErrAttendeeNotFound or
	// ErrDuplicateTicketID.
	UpdateFields(ctx context.Context, id int64, patch model.AttendeePatch) (*model.Attendee, error)

	// Delete removes the attendee and its token. Returns ErrAttendeeNotFound
	// when the id does not exist.
	Delete(ctx context.Context, id int64) error

	// ListAll lazily yields every attendee, newest first. Each range over the
	// returned sequence re-runs the query.
	ListAll(ctx context.Context) iter.Seq2[model.Attendee, error]

	// Search returns at most limit attendees matching q, newest first.
	Search(ctx context.Context, q model.SearchQuery, limit int) ([]model.Attendee, error)

	// MarkUsedByToken atomically moves the attendee holding token from unused
	// to used with scan time at (or its creation time, if later) and records
	// attempt as its ScanAttempt in the same update. It returns the attendee
	// after the call and whether this call made the transition. When the
	// attendee was already used, the stored scan time and attempt are
	// returned unchanged. Returns nil, false, nil when no attendee holds the
	// token.
	MarkUsedByToken(ctx context.Context, token string, at time.Time, attempt string) (*model.Attendee, bool, error)

	// MarkUsedByID is MarkUsedByToken keyed by attendee id.
	MarkUsedByID(ctx context.Context, id int64, at time.Time, attempt string) (*model.Attendee, bool, error)

	// SetPhoto stores or replaces the attendee's photo. Returns
	// ErrAttendeeNotFound when the id does not exist.
	SetPhoto(ctx context.Context, id int64, photo model.Photo) error

	// GetPhoto returns the attendee's photo, or nil, nil when none is stored.
	// Returns ErrAttendeeNotFound when the id does not exist.
	GetPhoto(ctx context.Context, id int64) (*model.Photo, error)

	// DeletePhoto removes the attendee's photo. Returns ErrAttendeeNotFound
	// when the id does not exist.
	DeletePhoto(ctx context.Context, id int64) error

	// ResetScan moves one attendee back to unused and clears its scan time.
	// Returns ErrAttendeeNotFound when the id does not exist.
	ResetScan(ctx context.Context, id int64) error

	// ResetAll moves every attendee to unused and returns the number of rows affected.
	ResetAll(ctx context.Context) (int64, error)

	// ClearAll deletes every attendee and returns the number of rows deleted.
	ClearAll(ctx context.Context) (int64, error)

	// Stats counts total, used and pending attendees.
	Stats(ctx context.Context) (model.Stats, error)
}
