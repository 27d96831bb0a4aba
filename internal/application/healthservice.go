package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Health statuses.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthReport is the operator-facing health view.
type HealthReport struct {
	Status     string
	Backend    string
	EventLabel string
	Stats      *model.Stats
	Error      string
}

// HealthService reports whether the registry store is reachable, with
// attendee counts when it is.
type HealthService struct {
	pinger     driven.Pinger
	store      driven.AttendeeStore
	backend    string
	eventLabel string
	policy     StoragePolicy
	logger     *slog.Logger
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(
	pinger driven.Pinger,
	store driven.AttendeeStore,
	backend, eventLabel string,
	policy StoragePolicy,
	logger *slog.Logger,
) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		pinger:     pinger,
		store:      store,
		backend:    backend,
		eventLabel: eventLabel,
		policy:     policy.withDefaults(),
		logger:     logger,
	}
}

// Check pings the store and counts attendees. Any failure degrades the
// report; it is never returned as an error.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, Backend: s.backend, EventLabel: s.eventLabel}

	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("health check: storage unreachable", "backend", s.backend, "error", err)
		report.Status = HealthDegraded
		report.Error = "storage unavailable"
		return report
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("health check: stats failed", "backend", s.backend, "error", err)
		report.Status = HealthDegraded
		report.Error = "storage unavailable"
		return report
	}
	report.Stats = &stats

	return report
}
