package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Rejection reasons reported per import row.
const (
	ReasonMissingName     = "missing name"
	ReasonMissingTicketID = "missing ticket id"
	ReasonDuplicateTicket = "duplicate ticket id"
)

// ImportService is the bulk import reconciler. It merges loosely-typed rows
// into the registry one row at a time; there is no transaction spanning the
// batch, so rows committed before an abort stay committed.
type ImportService struct {
	store    driven.AttendeeStore
	issuer   *Issuer
	observer Observer
	policy   StoragePolicy
	logger   *slog.Logger
}

// NewImportService creates an ImportService. observer may be nil.
func NewImportService(store driven.AttendeeStore, issuer *Issuer, observer Observer, policy StoragePolicy, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		store:    store,
		issuer:   issuer,
		observer: observerOrNop(observer),
		policy:   policy.withDefaults(),
		logger:   logger,
	}
}

// ImportRows registers every valid row and reports the rest as rejected.
// Only storage unavailability (after its retry), a credential generation
// failure or cancellation stop the batch; the partial result is returned
// with Aborted set alongside the error.
func (s *ImportService) ImportRows(ctx context.Context, rows []map[string]any) (model.ImportResult, error) {
	result := model.ImportResult{BatchID: uuid.NewString(), Rejected: []model.RejectedRow{}}
	resolver := newHeaderResolver()
	seen := make(map[string]struct{}, len(rows))

	reject := func(i int, row map[string]any, reason string) {
		result.Rejected = append(result.Rejected, model.RejectedRow{Index: i, Row: maps.Clone(row), Reason: reason})
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return s.abort(result, fmt.Errorf("import row %d: %w", i, err))
		}

		fields := resolver.extract(row)
		draft := model.AttendeeDraft{
			Name:     fields[fieldName],
			TicketID: fields[fieldTicketID],
			Email:    fields[fieldEmail],
		}

		switch {
		case draft.Name == "":
			reject(i, row, ReasonMissingName)
			continue
		case draft.TicketID == "":
			reject(i, row, ReasonMissingTicketID)
			continue
		}

		if _, dup := seen[draft.TicketID]; dup {
			reject(i, row, ReasonDuplicateTicket)
			continue
		}
		seen[draft.TicketID] = struct{}{}

		exists, err := s.ticketExists(ctx, draft.TicketID)
		if err != nil {
			return s.abort(result, fmt.Errorf("import row %d: %w", i, err))
		}
		if exists {
			reject(i, row, ReasonDuplicateTicket)
			continue
		}

		_, err = createAttendee(ctx, s.store, s.issuer, s.policy, s.observer, s.logger, draft)
		switch {
		case errors.Is(err, driven.ErrDuplicateTicketID):
			reject(i, row, ReasonDuplicateTicket)
			continue
		case err != nil:
			return s.abort(result, fmt.Errorf("import row %d: %w", i, err))
		}

		result.Imported++
	}

	s.observer.Import(result.Imported, len(result.Rejected))
	s.logger.Info("import finished",
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"rejected", len(result.Rejected),
	)

	return result, nil
}

func (s *ImportService) ticketExists(ctx context.Context, ticketID string) (bool, error) {
	found, err := callStorage(ctx, s.policy, s.observer, s.logger, "import_lookup", func(ctx context.Context, _ int) ([]model.Attendee, error) {
		return s.store.Search(ctx, model.SearchQuery{TicketID: ticketID}, 1)
	})
	if err != nil {
		return false, fmt.Errorf("look up ticket %s: %w", ticketID, err)
	}
	return len(found) > 0, nil
}

func (s *ImportService) abort(result model.ImportResult, err error) (model.ImportResult, error) {
	result.Aborted = true
	s.observer.Import(result.Imported, len(result.Rejected))
	s.logger.Error("import aborted",
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"rejected", len(result.Rejected),
		"error", err,
	)
	return result, err
}

// maxTokenAttempts bounds re-issuance after a token collision.
const maxTokenAttempts = 3

// createAttendee mints a credential for draft and stores it. A retried
// insert that finds its own token already stored means the first attempt
// committed, and counts as success.
func createAttendee(
	ctx context.Context,
	store driven.AttendeeStore,
	issuer *Issuer,
	policy StoragePolicy,
	observer Observer,
	logger *slog.Logger,
	draft model.AttendeeDraft,
) (*model.Attendee, error) {
	for range maxTokenAttempts {
		cred, err := issuer.Issue(draft)
		if err != nil {
			return nil, err
		}

		a := model.Attendee{
			Name:     draft.Name,
			TicketID: draft.TicketID,
			Email:    draft.Email,
			Token:    cred.Token,
		}

		created, err := callStorage(ctx, policy, observer, logger, "create_attendee", func(ctx context.Context, attempt int) (*model.Attendee, error) {
			created, err := store.Create(ctx, a)
			if err == nil || attempt == 0 {
				return created, err
			}
			if errors.Is(err, driven.ErrDuplicateTicketID) || errors.Is(err, driven.ErrDuplicateToken) {
				own, lookupErr := store.GetByToken(ctx, a.Token)
				if lookupErr != nil {
					return nil, lookupErr
				}
				if own != nil {
					return own, nil
				}
			}
			return nil, err
		})
		if errors.Is(err, driven.ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create attendee %s: %w", draft.TicketID, err)
		}
		return created, nil
	}

	return nil, fmt.Errorf("create attendee %s: %w", draft.TicketID, driven.ErrDuplicateToken)
}
