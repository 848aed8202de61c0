package sqlite

import (
	"context"
	"testing"

	"github.com/promptvault/promptvault/internal/types"
)

// newTestStore creates a Store against a temp-file database.
//
// File-based databases are more reliable than in-memory for connection
// pool scenarios, and they exercise the WAL path the way production does.
// Pass a custom dbPath to test against a prepared legacy file.
func newTestStore(t *testing.T, dbPath string) *Store {
	t.Helper()

	if dbPath == "" {
		dbPath = t.TempDir() + "/test.db"
	}

	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}

// savePrompt is a test shorthand that fails the test on error.
func savePrompt(t *testing.T, store *Store, p *types.Prompt) int64 {
	t.Helper()
	id, err := store.SavePrompt(context.Background(), p)
	if err != nil {
		t.Fatalf("SavePrompt(%q) error = %v", p.Text, err)
	}
	return id
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
