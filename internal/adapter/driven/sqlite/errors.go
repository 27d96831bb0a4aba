package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// classify maps driver failures onto the port sentinels. Lock contention,
// I/O failures and deadlines become ErrStorageUnavailable so the application
// layer can apply its single retry; everything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}

	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY,
			sqlitelib.SQLITE_LOCKED,
			sqlitelib.SQLITE_IOERR,
			sqlitelib.SQLITE_CANTOPEN,
			sqlitelib.SQLITE_FULL,
			sqlitelib.SQLITE_PROTOCOL:
			return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
		}
	}

	return err
}

// classifyUnique maps attendee uniqueness violations onto the port sentinels
// before falling back to classify.
func classifyUnique(err error) error {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE {
		msg := sqliteErr.Error()
		switch {
		case strings.Contains(msg, "attendees.ticket_id"):
			return fmt.Errorf("%w: %w", driven.ErrDuplicateTicketID, err)
		case strings.Contains(msg, "attendees.token"):
			return fmt.Errorf("%w: %w", driven.ErrDuplicateToken, err)
		}
	}
	return classify(err)
}
