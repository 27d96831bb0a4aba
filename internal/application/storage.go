package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Default storage call policy.
const (
	DefaultStorageTimeout = 5 * time.Second
	DefaultRetryDelay     = 200 * time.Millisecond
)

// StoragePolicy bounds every storage call and sets the delay before the
// single retry granted to ErrStorageUnavailable.
type StoragePolicy struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

func (p StoragePolicy) withDefaults() StoragePolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultStorageTimeout
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	return p
}

// callStorage runs fn under the policy timeout. When fn fails with
// ErrStorageUnavailable it is run exactly once more; fn receives the attempt
// number so it can reconcile a write that may have landed before the failure.
func callStorage[T any](
	ctx context.Context,
	policy StoragePolicy,
	observer Observer,
	logger *slog.Logger,
	op string,
	fn func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		n := attempt
		attempt++
		if n > 0 {
			observer.StorageRetry(op)
			logger.Warn("retrying storage call", "op", op, "attempt", n+1)
		}

		callCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		defer cancel()

		v, err := fn(callCtx, n)
		if err != nil && !errors.Is(err, driven.ErrStorageUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.RetryDelay), 1), ctx)
	return backoff.RetryWithData(operation, b)
}
