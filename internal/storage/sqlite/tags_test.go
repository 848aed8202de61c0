package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/types"
)

func TestSetPromptTagsReplacesMembership(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	id := savePrompt(t, store, &types.Prompt{Text: "tagged prompt", Tags: []string{"a", "b"}})

	if err := store.SetPromptTags(ctx, id, []string{"b", "c"}); err != nil {
		t.Fatalf("SetPromptTags() error = %v", err)
	}

	got, err := store.GetPrompt(ctx, id)
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "b" || got.Tags[1] != "c" {
		t.Fatalf("tags = %v, want [b c]", got.Tags)
	}

	// "a" stays in the vocabulary even with zero links; dead entries are
	// only removed by an explicit DeleteTag.
	tags, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("vocabulary size = %d, want 3", len(tags))
	}
}

func TestSetPromptTagsMissingPrompt(t *testing.T) {
	store := newTestStore(t, "")

	err := store.SetPromptTags(context.Background(), 777, []string{"x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRenameTagPlain(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	savePrompt(t, store, &types.Prompt{Text: "one", Tags: []string{"x"}})
	savePrompt(t, store, &types.Prompt{Text: "two", Tags: []string{"x"}})

	result, err := store.RenameTag(ctx, "x", "y")
	if err != nil {
		t.Fatalf("RenameTag() error = %v", err)
	}
	if result.PromptsAffected != 2 {
		t.Fatalf("PromptsAffected = %d, want 2", result.PromptsAffected)
	}

	counts, err := store.ListTagCounts(ctx, storage.TagListOptions{})
	if err != nil {
		t.Fatalf("ListTagCounts() error = %v", err)
	}
	if len(counts) != 1 || counts[0].Name != "y" || counts[0].Count != 2 {
		t.Fatalf("counts = %v, want [{y 2}]", counts)
	}
}

func TestRenameTagCollisionMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	both := savePrompt(t, store, &types.Prompt{Text: "both tags", Tags: []string{"x", "y"}})
	savePrompt(t, store, &types.Prompt{Text: "only x", Tags: []string{"x"}})
	savePrompt(t, store, &types.Prompt{Text: "only y", Tags: []string{"y"}})

	if _, err := store.RenameTag(ctx, "x", "y"); err != nil {
		t.Fatalf("RenameTag() with existing target error = %v", err)
	}

	tags, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "y" {
		t.Fatalf("vocabulary = %v, want only [y]", tags)
	}

	// The doubly-tagged prompt must not carry duplicate links.
	got, err := store.GetPrompt(ctx, both)
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "y" {
		t.Fatalf("tags = %v, want [y]", got.Tags)
	}

	matches, err := store.SearchPrompts(ctx, types.PromptFilter{Tags: []string{"y"}})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("prompts tagged y = %d, want 3", len(matches))
	}
}

func TestRenameTagMissing(t *testing.T) {
	store := newTestStore(t, "")

	_, err := store.RenameTag(context.Background(), "nope", "whatever")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTagKeepsPrompts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	id := savePrompt(t, store, &types.Prompt{Text: "keep me", Tags: []string{"doomed", "kept"}})

	result, err := store.DeleteTag(ctx, "doomed")
	if err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	if result.PromptsAffected != 1 {
		t.Fatalf("PromptsAffected = %d, want 1", result.PromptsAffected)
	}

	got, err := store.GetPrompt(ctx, id)
	if err != nil {
		t.Fatalf("GetPrompt() error = %v (prompt must survive tag deletion)", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "kept" {
		t.Fatalf("tags = %v, want [kept]", got.Tags)
	}
}

func TestMergeTags(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	savePrompt(t, store, &types.Prompt{Text: "has a", Tags: []string{"a"}})
	savePrompt(t, store, &types.Prompt{Text: "has b", Tags: []string{"b"}})
	savePrompt(t, store, &types.Prompt{Text: "has a and c", Tags: []string{"a", "c"}})

	result, err := store.MergeTags(ctx, []string{"a", "b"}, "c")
	if err != nil {
		t.Fatalf("MergeTags() error = %v", err)
	}
	if result.PromptsAffected != 3 {
		t.Fatalf("PromptsAffected = %d, want 3", result.PromptsAffected)
	}

	tags, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "c" {
		t.Fatalf("vocabulary = %v, want only [c]", tags)
	}

	matches, err := store.SearchPrompts(ctx, types.PromptFilter{Tags: []string{"c"}})
	if err != nil {
		t.Fatalf("SearchPrompts() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("prompts tagged c = %d, want all 3", len(matches))
	}
}

func TestListTagCountsFilterAndSort(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	savePrompt(t, store, &types.Prompt{Text: "1", Tags: []string{"alpha", "beta"}})
	savePrompt(t, store, &types.Prompt{Text: "2", Tags: []string{"beta"}})
	savePrompt(t, store, &types.Prompt{Text: "3", Tags: []string{"gamma"}})

	byCount, err := store.ListTagCounts(ctx, storage.TagListOptions{Sort: storage.TagSortCount})
	if err != nil {
		t.Fatalf("ListTagCounts() error = %v", err)
	}
	if byCount[0].Name != "beta" || byCount[0].Count != 2 {
		t.Fatalf("byCount[0] = %v, want {beta 2}", byCount[0])
	}

	filtered, err := store.ListTagCounts(ctx, storage.TagListOptions{Search: "ALPH"})
	if err != nil {
		t.Fatalf("ListTagCounts() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "alpha" {
		t.Fatalf("filtered = %v, want [{alpha 1}]", filtered)
	}

	paged, err := store.ListTagCounts(ctx, storage.TagListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListTagCounts() error = %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("paged size = %d, want 1", len(paged))
	}
}

func TestUntaggedPrompts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	savePrompt(t, store, &types.Prompt{Text: "tagged", Tags: []string{"t"}})
	bare := savePrompt(t, store, &types.Prompt{Text: "bare"})

	got, err := store.UntaggedPrompts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("UntaggedPrompts() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != bare {
		t.Fatalf("untagged = %v, want just the bare prompt", got)
	}
}
