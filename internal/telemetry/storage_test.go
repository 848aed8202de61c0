package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/storage/sqlite"
	"github.com/promptvault/promptvault/internal/types"
)

func newMemoryStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWrapStorageDisabledReturnsOriginal(t *testing.T) {
	t.Setenv("PV_OTEL_ENABLED", "")
	store := newMemoryStore(t)

	wrapped := WrapStorage(store)
	if wrapped != store {
		t.Fatal("WrapStorage() with telemetry off should return the store unchanged")
	}
}

func TestWrapStorageEnabledPassesThrough(t *testing.T) {
	t.Setenv("PV_OTEL_ENABLED", "true")
	ctx := context.Background()
	store := newMemoryStore(t)

	wrapped := WrapStorage(store)
	if _, ok := wrapped.(*InstrumentedStorage); !ok {
		t.Fatalf("WrapStorage() = %T, want *InstrumentedStorage", wrapped)
	}

	id, err := wrapped.SavePrompt(ctx, &types.Prompt{Text: "a castle at dawn"})
	if err != nil {
		t.Fatalf("SavePrompt() through wrapper error = %v", err)
	}
	got, err := wrapped.GetPrompt(ctx, id)
	if err != nil {
		t.Fatalf("GetPrompt() through wrapper error = %v", err)
	}
	if got.Text != "a castle at dawn" {
		t.Fatalf("GetPrompt().Text = %q, want the saved text", got.Text)
	}
	if wrapped.Path() != store.Path() {
		t.Fatalf("Path() = %q, want %q", wrapped.Path(), store.Path())
	}
}

func TestWrapStorageErrorsPassThroughUnchanged(t *testing.T) {
	t.Setenv("PV_OTEL_ENABLED", "true")
	ctx := context.Background()
	wrapped := WrapStorage(newMemoryStore(t))

	_, err := wrapped.GetPrompt(ctx, 9999)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetPrompt(9999) error = %v, want ErrNotFound through the wrapper", err)
	}
}
