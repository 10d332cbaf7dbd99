package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
)

var (
	testDBOnce sync.Once
	testDB     *database.DB
	testDBErr  error
)

// requireTestDB connects to the database named by TEST_DATABASE_URL and skips
// the test when the variable is unset. The schema from migrations/ must be
// applied beforehand.
func requireTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database integration tests")
	}

	testDBOnce.Do(func() {
		testDB, testDBErr = database.NewPostgreSQLDB(dsn)
	})
	if testDBErr != nil {
		t.Fatalf("failed to connect to test database: %v", testDBErr)
	}
	return testDB
}

// truncateAll resets every table between tests.
func truncateAll(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"activity_events",
		"attendances",
		"refresh_tokens",
		"users",
	}
	for _, table := range tables {
		if _, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
