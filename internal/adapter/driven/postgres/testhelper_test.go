package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB connects to GATECHECK_TEST_DATABASE_URL and empties every table.
// Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	url, ok := os.LookupEnv("GATECHECK_TEST_DATABASE_URL")
	if !ok || url == "" {
		t.Skip("GATECHECK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db))

	_, err = db.Pool.Exec(ctx, `TRUNCATE attendees, sessions, scan_events RESTART IDENTITY`)
	require.NoError(t, err)

	return db
}
