package sqlite

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/promptvault/promptvault/internal/types"
)

func TestLinkImageIsIdempotentPerPromptAndFilename(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	id := savePrompt(t, store, &types.Prompt{Text: "image source"})

	first, err := store.LinkImage(ctx, &types.GeneratedImage{
		PromptID:  id,
		ImagePath: "/out/gen_0001.png",
		FileSize:  1024,
	})
	if err != nil {
		t.Fatalf("LinkImage() error = %v", err)
	}

	second, err := store.LinkImage(ctx, &types.GeneratedImage{
		PromptID:  id,
		ImagePath: "/out/gen_0001.png",
		FileSize:  2048,
	})
	if err != nil {
		t.Fatalf("LinkImage() second call error = %v", err)
	}
	if first != second {
		t.Fatalf("re-link created a new row: first=%d second=%d", first, second)
	}

	images, err := store.ImagesForPrompt(ctx, id)
	if err != nil {
		t.Fatalf("ImagesForPrompt() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("image count = %d, want 1", len(images))
	}
	if images[0].FileSize != 2048 {
		t.Fatalf("file size = %d, want metadata refreshed to 2048", images[0].FileSize)
	}
	if images[0].Filename != "gen_0001.png" {
		t.Fatalf("filename = %q, want derived from path", images[0].Filename)
	}
}

func TestLinkImageMissingPrompt(t *testing.T) {
	store := newTestStore(t, "")

	_, err := store.LinkImage(context.Background(), &types.GeneratedImage{
		PromptID:  12345,
		ImagePath: "/out/x.png",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestImageMetadataRoundTripNormalizesNaN(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	id := savePrompt(t, store, &types.Prompt{Text: "metadata prompt"})

	imgID, err := store.LinkImage(ctx, &types.GeneratedImage{
		PromptID:  id,
		ImagePath: "/out/meta.png",
		Width:     512,
		Height:    768,
		Format:    "png",
		Parameters: map[string]any{
			"cfg_scale": 7.5,
			"sigma":     math.NaN(),
			"nested": map[string]any{
				"denoise": math.Inf(1),
				"steps":   float64(20),
			},
		},
	})
	if err != nil {
		t.Fatalf("LinkImage() error = %v", err)
	}

	got, err := store.GetImage(ctx, imgID)
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if got.Parameters["cfg_scale"] != 7.5 {
		t.Fatalf("cfg_scale = %v, want 7.5", got.Parameters["cfg_scale"])
	}
	if got.Parameters["sigma"] != nil {
		t.Fatalf("sigma = %v, want nil (NaN normalized)", got.Parameters["sigma"])
	}
	nested, ok := got.Parameters["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %v, want map", got.Parameters["nested"])
	}
	if nested["denoise"] != nil {
		t.Fatalf("nested denoise = %v, want nil (Inf normalized)", nested["denoise"])
	}
	if nested["steps"] != float64(20) {
		t.Fatalf("nested steps = %v, want 20", nested["steps"])
	}
}

func TestRecentAndSearchImages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	fox := savePrompt(t, store, &types.Prompt{Text: "a fox"})
	barn := savePrompt(t, store, &types.Prompt{Text: "a barn"})

	for _, link := range []struct {
		promptID int64
		name     string
	}{
		{fox, "fox1.png"}, {fox, "fox2.png"}, {barn, "barn1.png"},
	} {
		if _, err := store.LinkImage(ctx, &types.GeneratedImage{
			PromptID:  link.promptID,
			ImagePath: "/out/" + link.name,
		}); err != nil {
			t.Fatalf("LinkImage(%s) error = %v", link.name, err)
		}
	}

	recent, err := store.RecentImages(ctx, 10, true)
	if err != nil {
		t.Fatalf("RecentImages() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent count = %d, want 3", len(recent))
	}
	for _, img := range recent {
		if img.PromptText == "" {
			t.Fatalf("image %d missing joined prompt text", img.ID)
		}
	}

	matches, err := store.SearchImages(ctx, "FOX", 10)
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("search count = %d, want 2", len(matches))
	}
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	id := savePrompt(t, store, &types.Prompt{Text: "delete target"})
	imgID, err := store.LinkImage(ctx, &types.GeneratedImage{PromptID: id, ImagePath: "/out/del.png"})
	if err != nil {
		t.Fatalf("LinkImage() error = %v", err)
	}

	affected, err := store.DeleteImage(ctx, imgID)
	if err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	if !affected {
		t.Fatal("DeleteImage() affected = false, want true")
	}

	affected, err = store.DeleteImage(ctx, imgID)
	if err != nil {
		t.Fatalf("DeleteImage() second call error = %v", err)
	}
	if affected {
		t.Fatal("DeleteImage() on missing row reported affected = true")
	}
}

func TestCleanupMissingFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")
	dir := t.TempDir()

	id := savePrompt(t, store, &types.Prompt{Text: "cleanup prompt"})

	present := filepath.Join(dir, "present.png")
	if err := os.WriteFile(present, []byte("fake image"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	missing := filepath.Join(dir, "missing.png")

	for _, path := range []string{present, missing} {
		if _, err := store.LinkImage(ctx, &types.GeneratedImage{PromptID: id, ImagePath: path}); err != nil {
			t.Fatalf("LinkImage(%s) error = %v", path, err)
		}
	}

	removed, err := store.CleanupMissingFiles(ctx)
	if err != nil {
		t.Fatalf("CleanupMissingFiles() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	images, err := store.ImagesForPrompt(ctx, id)
	if err != nil {
		t.Fatalf("ImagesForPrompt() error = %v", err)
	}
	if len(images) != 1 || images[0].ImagePath != present {
		t.Fatalf("surviving images = %v, want only the on-disk file", images)
	}
}
