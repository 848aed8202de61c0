package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/promptvault/promptvault/internal/types"
)

func seedSearchFixtures(t *testing.T, store *Store) {
	t.Helper()
	savePrompt(t, store, &types.Prompt{Text: "a red fox in snow", Category: "animals", Tags: []string{"fox", "winter"}, Rating: intPtr(5)})
	savePrompt(t, store, &types.Prompt{Text: "a red barn at sunset", Category: "buildings", Tags: []string{"sunset"}, Rating: intPtr(2)})
	savePrompt(t, store, &types.Prompt{Text: "arctic fox portrait", Category: "animals", Tags: []string{"fox"}})
}

func TestSearchPromptsTextSubstring(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	got, err := store.SearchPrompts(ctx, types.PromptFilter{TextContains: "RED"})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("match count = %d, want 2 (case-insensitive substring)", len(got))
	}
}

func TestSearchPromptsTagsAreANDSemantics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	got, err := store.SearchPrompts(ctx, types.PromptFilter{Tags: []string{"fox", "winter"}})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("match count = %d, want 1 (both tags required)", len(got))
	}
	if got[0].Text != "a red fox in snow" {
		t.Fatalf("match = %q, want the prompt carrying both tags", got[0].Text)
	}
}

func TestSearchPromptsRepeatedTagFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	// A tag named twice still means "tagged fox", not "tagged with two
	// distinct tags". Repeated --tag flags from the CLI land here verbatim.
	got, err := store.SearchPrompts(ctx, types.PromptFilter{Tags: []string{"fox", "fox"}})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("match count = %d, want 2 (duplicate tag names collapse)", len(got))
	}

	got, err = store.SearchPrompts(ctx, types.PromptFilter{Tags: []string{"fox", "winter", "fox"}})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "a red fox in snow" {
		t.Fatalf("got %d results, want exactly the prompt tagged fox and winter", len(got))
	}
}

func TestSearchPromptsCombinedFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	got, err := store.SearchPrompts(ctx, types.PromptFilter{
		Category:  "animals",
		RatingMin: intPtr(4),
	})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "a red fox in snow" {
		t.Fatalf("got %d results, want exactly the rated animal prompt", len(got))
	}
}

func TestSearchPromptsDateRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	got, err := store.SearchPrompts(ctx, types.PromptFilter{CreatedAfter: &past, CreatedBefore: &future})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("in-range count = %d, want 3", len(got))
	}

	got, err = store.SearchPrompts(ctx, types.PromptFilter{CreatedBefore: &past})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("out-of-range count = %d, want 0", len(got))
	}
}

func TestSearchPromptsEmptyResultIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	got, err := store.SearchPrompts(ctx, types.PromptFilter{Category: "pets"})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v, want success with empty result", err)
	}
	if len(got) != 0 {
		t.Fatalf("match count = %d, want 0", len(got))
	}
}

func TestSearchPromptsPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	for _, text := range []string{"p1", "p2", "p3", "p4", "p5"} {
		savePrompt(t, store, &types.Prompt{Text: text})
	}

	page1, err := store.SearchPrompts(ctx, types.PromptFilter{Limit: 2})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	page2, err := store.SearchPrompts(ctx, types.PromptFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("page sizes = %d, %d, want 2, 2", len(page1), len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Fatal("pages overlap")
	}
	// Newest first: page1 holds higher ids than page2.
	if page1[0].ID < page2[0].ID {
		t.Fatalf("ordering wrong: page1[0]=%d page2[0]=%d", page1[0].ID, page2[0].ID)
	}
}

func TestRecentAndByCategory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	seedSearchFixtures(t, store)

	recent, err := store.RecentPrompts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPrompts() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent count = %d, want 2", len(recent))
	}

	animals, err := store.PromptsByCategory(ctx, "animals", 10)
	if err != nil {
		t.Fatalf("PromptsByCategory() error = %v", err)
	}
	if len(animals) != 2 {
		t.Fatalf("category count = %d, want 2", len(animals))
	}
}
