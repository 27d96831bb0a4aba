package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

func TestCallStorage(t *testing.T) {
	errPermanent := errors.New("constraint violated")

	tests := []struct {
		name         string
		failures     []error
		wantErr      error
		wantAttempts int
	}{
		{name: "first attempt succeeds", wantAttempts: 1},
		{name: "one unavailable then success", failures: []error{driven.ErrStorageUnavailable}, wantAttempts: 2},
		{name: "unavailable twice", failures: []error{driven.ErrStorageUnavailable, driven.ErrStorageUnavailable, nil}, wantErr: driven.ErrStorageUnavailable, wantAttempts: 2},
		{name: "other errors are not retried", failures: []error{errPermanent}, wantErr: errPermanent, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts []int
			policy := StoragePolicy{Timeout: time.Second}

			v, err := callStorage(context.Background(), policy, nopObserver{}, slog.New(slog.DiscardHandler), "op", func(ctx context.Context, attempt int) (int, error) {
				attempts = append(attempts, attempt)
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline, "every call runs under a timeout")
				if attempt < len(tt.failures) && tt.failures[attempt] != nil {
					return 0, tt.failures[attempt]
				}
				return 42, nil
			})

			assert.Len(t, attempts, tt.wantAttempts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, v)
		})
	}
}

func TestCallStorage_LogsRetryToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := callStorage(context.Background(), StoragePolicy{Timeout: time.Second}, nopObserver{}, logger, "stats",
		func(_ context.Context, attempt int) (int, error) {
			if attempt == 0 {
				return 0, driven.ErrStorageUnavailable
			}
			return 1, nil
		})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "retrying storage call")
	assert.Contains(t, buf.String(), "op=stats")
}

func TestCellString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  Ada ", "Ada"},
		{1001.0, "1001"},
		{12.5, "12.5"},
		{float32(7), "7"},
		{42, "42"},
		{int64(-3), "-3"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellString(tt.in))
	}
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "ticket id", normalizeHeader("  Ticket_ID "))
	assert.Equal(t, "e mail", normalizeHeader("E-Mail"))
	assert.Equal(t, "full name", normalizeHeader("FULL   name"))
}
