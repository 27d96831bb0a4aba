package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// manualSearchLimit is one more than the single match a manual check-in
// needs, so that ambiguity is detectable without loading every match.
const manualSearchLimit = 2

// CheckInService is the check-in state machine. Every path that admits an
// attendee goes through it; the unused -> used transition itself is a single
// conditional update performed by the AttendeeStore.
type CheckInService struct {
	store    driven.AttendeeStore
	events   driven.ScanEventStore
	observer Observer
	policy   StoragePolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewCheckInService creates a CheckInService. events and observer may be nil.
func NewCheckInService(
	store driven.AttendeeStore,
	events driven.ScanEventStore,
	observer Observer,
	policy StoragePolicy,
	logger *slog.Logger,
) *CheckInService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckInService{
		store:    store,
		events:   events,
		observer: observerOrNop(observer),
		policy:   policy.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *CheckInService) SetClock(now func() time.Time) {
	s.now = now
}

// Scan checks in the credential carried by a raw scan payload.
//
// For business outcomes (already used, unknown, malformed) the returned
// outcome is populated and err wraps the matching sentinel. When storage
// fails the outcome is zero and err wraps driven.ErrStorageUnavailable.
func (s *CheckInService) Scan(ctx context.Context, raw string) (model.CheckInOutcome, error) {
	token, err := DecodeToken(raw)
	if err != nil {
		out := model.CheckInOutcome{
			Status:  model.CheckInMalformed,
			Message: "Could not read a credential from the scan",
		}
		s.finish(ctx, model.SourceScan, out, err.Error())
		return out, err
	}

	missing := notFound{
		out: model.CheckInOutcome{Status: model.CheckInUnknown, Message: "Credential not recognized"},
		err: fmt.Errorf("%w: token %s", ErrUnknownCredential, shortToken(token)),
	}
	return s.transition(ctx, model.SourceScan, "check_in", missing, func(ctx context.Context, at time.Time, attempt string) (*model.Attendee, bool, error) {
		return s.store.MarkUsedByToken(ctx, token, at, attempt)
	})
}

// ManualCheckIn resolves an attendee by name substring and/or exact ticket
// id and checks them in when exactly one attendee matches.
func (s *CheckInService) ManualCheckIn(ctx context.Context, name, ticketID string) (model.CheckInOutcome, error) {
	q := model.SearchQuery{
		NameContains: strings.TrimSpace(name),
		TicketID:     strings.TrimSpace(ticketID),
	}
	if q.IsEmpty() {
		out := ambiguousOutcome(0)
		s.finish(ctx, model.SourceManual, out, "empty search")
		return out, fmt.Errorf("%w: no search criteria", ErrAmbiguousOrNotFound)
	}

	matches, err := callStorage(ctx, s.policy, s.observer, s.logger, "manual_search", func(ctx context.Context, _ int) ([]model.Attendee, error) {
		return s.store.Search(ctx, q, manualSearchLimit)
	})
	if err != nil {
		return model.CheckInOutcome{}, fmt.Errorf("manual search: %w", err)
	}

	if len(matches) != 1 {
		out := ambiguousOutcome(len(matches))
		s.finish(ctx, model.SourceManual, out, fmt.Sprintf("%d matches", len(matches)))
		return out, fmt.Errorf("%w: %d matches", ErrAmbiguousOrNotFound, len(matches))
	}

	// The match may be deleted between the search and the update.
	id := matches[0].ID
	missing := notFound{
		out:    ambiguousOutcome(0),
		detail: fmt.Sprintf("attendee %d removed", id),
		err:    fmt.Errorf("%w: attendee %d removed", ErrAmbiguousOrNotFound, id),
	}
	return s.transition(ctx, model.SourceManual, "manual_check_in", missing, func(ctx context.Context, at time.Time, attempt string) (*model.Attendee, bool, error) {
		return s.store.MarkUsedByID(ctx, id, at, attempt)
	})
}

// CheckInByID admits a known attendee from the admin dashboard. Returns
// driven.ErrAttendeeNotFound when the id does not exist.
func (s *CheckInService) CheckInByID(ctx context.Context, id int64) (model.CheckInOutcome, error) {
	missing := notFound{
		out:    model.CheckInOutcome{Status: model.CheckInUnknown, Message: "Attendee not found"},
		detail: fmt.Sprintf("attendee %d not found", id),
		err:    fmt.Errorf("check in attendee %d: %w", id, driven.ErrAttendeeNotFound),
	}
	return s.transition(ctx, model.SourceAdmin, "admin_check_in", missing, func(ctx context.Context, at time.Time, attempt string) (*model.Attendee, bool, error) {
		return s.store.MarkUsedByID(ctx, id, at, attempt)
	})
}

type markFunc func(ctx context.Context, at time.Time, attempt string) (*model.Attendee, bool, error)

type markResult struct {
	attendee     *model.Attendee
	transitioned bool
}

// notFound is what a transition reports and records when no attendee
// matches at update time.
type notFound struct {
	out    model.CheckInOutcome
	detail string
	err    error
}

// transition runs mark with one retry on storage failure. Every call to mark
// carries the same attempt id, which the store writes only when its update
// wins. A retry that finds the attendee used under this attempt id means the
// first call committed before its response was lost, so it counts as
// success. Any other used row belongs to someone else.
func (s *CheckInService) transition(
	ctx context.Context,
	source model.CheckInSource,
	op string,
	missing notFound,
	mark markFunc,
) (model.CheckInOutcome, error) {
	at := s.now().UTC().Truncate(time.Microsecond)
	attemptID := uuid.NewString()

	res, err := callStorage(ctx, s.policy, s.observer, s.logger, op, func(ctx context.Context, attempt int) (markResult, error) {
		a, transitioned, err := mark(ctx, at, attemptID)
		if err != nil {
			return markResult{}, err
		}
		if !transitioned && attempt > 0 && a != nil && a.Used && a.ScanAttempt == attemptID {
			transitioned = true
		}
		return markResult{attendee: a, transitioned: transitioned}, nil
	})
	if err != nil {
		s.logger.Error("check-in storage failure", "source", source, "error", err)
		return model.CheckInOutcome{}, fmt.Errorf("check in: %w", err)
	}

	a := res.attendee
	switch {
	case a == nil:
		s.finish(ctx, source, missing.out, missing.detail)
		return missing.out, missing.err

	case res.transitioned:
		out := model.CheckInOutcome{
			Status:   model.CheckInSuccess,
			Message:  fmt.Sprintf("Checked in %s", a.Name),
			Attendee: a,
			ScanTime: a.ScanTime,
		}
		s.finish(ctx, source, out, "")
		return out, nil

	default:
		out := model.CheckInOutcome{
			Status:   model.CheckInAlreadyUsed,
			Message:  alreadyUsedMessage(a),
			Attendee: a,
			ScanTime: a.ScanTime,
		}
		s.finish(ctx, source, out, "")
		return out, fmt.Errorf("%w: ticket %s", ErrAlreadyUsed, a.TicketID)
	}
}

// finish reports an outcome after any commit has happened. The audit write
// is detached from the caller's cancellation so an abandoned request still
// leaves its trace.
func (s *CheckInService) finish(ctx context.Context, source model.CheckInSource, out model.CheckInOutcome, detail string) {
	s.observer.CheckIn(source, out.Status)

	attrs := []any{"source", source, "status", out.Status}
	if out.Attendee != nil {
		attrs = append(attrs, "ticket_id", out.Attendee.TicketID)
	}
	s.logger.Info("check-in", attrs...)

	if s.events == nil {
		return
	}

	ev := model.ScanEvent{
		Source:     source,
		Status:     out.Status,
		Detail:     detail,
		OccurredAt: s.now().UTC(),
	}
	if out.Attendee != nil {
		id := out.Attendee.ID
		ev.AttendeeID = &id
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.Timeout)
	defer cancel()
	if err := s.events.Record(auditCtx, ev); err != nil {
		s.logger.Warn("failed to record scan event", "status", out.Status, "error", err)
	}
}

// RecentEvents returns the newest audit entries.
func (s *CheckInService) RecentEvents(ctx context.Context, limit int) ([]model.ScanEvent, error) {
	if s.events == nil {
		return nil, nil
	}
	events, err := callStorage(ctx, s.policy, s.observer, s.logger, "list_scan_events", func(ctx context.Context, _ int) ([]model.ScanEvent, error) {
		return s.events.ListRecent(ctx, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", err)
	}
	return events, nil
}

func alreadyUsedMessage(a *model.Attendee) string {
	if a.ScanTime == nil {
		return fmt.Sprintf("%s was already checked in", a.Name)
	}
	return fmt.Sprintf("%s was already checked in at %s", a.Name, a.ScanTime.Format(time.RFC3339))
}

func ambiguousOutcome(matches int) model.CheckInOutcome {
	msg := "No attendee matches the search"
	if matches > 1 {
		msg = "Several attendees match; refine the search"
	}
	return model.CheckInOutcome{
		Status:  model.CheckInAmbiguousOrNotFound,
		Message: msg,
		Matches: matches,
	}
}

// shortToken keeps log and error lines from carrying whole credentials.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

// IsBusinessOutcome reports whether err is one of the check-in rejections
// that come with a populated outcome.
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrUnknownCredential) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrAmbiguousOrNotFound)
}
