package driven

import (
	"context"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// ScanEventStore defines the driven port for the check-in audit trail.
type ScanEventStore interface {
	Record(ctx context.Context, e model.ScanEvent) error

	// ListRecent returns up to limit events, most recent first.
	ListRecent(ctx context.Context, limit int) ([]model.ScanEvent, error)
}
