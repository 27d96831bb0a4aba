package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// classify maps pgx failures onto the port sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			switch pgErr.ConstraintName {
			case "attendees_ticket_id_key":
				return fmt.Errorf("%w: %w", driven.ErrDuplicateTicketID, err)
			case "attendees_token_key":
				return fmt.Errorf("%w: %w", driven.ErrDuplicateToken, err)
			}
		case "40001", "40P01", "53300", "57P01", "57P02", "57P03", "08000", "08003", "08006":
			return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", driven.ErrStorageUnavailable, err)
	}

	return err
}
