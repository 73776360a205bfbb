package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
)

var (
	testDB    *TestDB
	setupOnce sync.Once
	setupErr  error
)

// testEnv lazily starts the shared container and truncates all tables so each
// test begins from a clean database.
func testEnv(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	setupOnce.Do(func() {
		testDB, setupErr = SetupTestDatabase(context.Background())
	})
	if setupErr != nil {
		t.Fatalf("failed to set up test database: %v", setupErr)
	}

	if err := testDB.CleanupTables(context.Background()); err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}

	return testDB
}

func TestMain(m *testing.M) {
	flag.Parse()

	code := m.Run()

	if testDB != nil {
		if err := testDB.Teardown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "teardown failed: %v\n", err)
		}
	}

	os.Exit(code)
}
