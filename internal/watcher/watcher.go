// Package watcher links files appearing in a generation output directory
// to the prompts that produced them.
//
// All storage semantics live in the store; the watcher only decides which
// files matter, which prompt they belong to, and when to trigger a cleanup
// of links whose files have disappeared.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/types"
)

// ImageStore is the slice of the storage API the watcher needs.
type ImageStore interface {
	LinkImage(ctx context.Context, img *types.GeneratedImage) (int64, error)
	CleanupMissingFiles(ctx context.Context) (int, error)
}

// Resolver maps a correlation key to the prompt currently generating.
// *tracker.Tracker satisfies this.
type Resolver interface {
	Lookup(correlationID string) (int64, bool)
}

// Options configures a Watcher. Zero values select the defaults.
type Options struct {
	Dir            string        // output directory to watch (required)
	RescanInterval time.Duration // full-tree rescan period; 0 means 5m, <0 disables
	SettleDelay    time.Duration // wait after an event before reading the file; 0 means 500ms
	Extensions     []string      // image extension allowlist; nil means png/jpg/jpeg/webp
	BusyMaxElapsed time.Duration // retry window for busy-database link attempts; 0 means 10s
	ScanWorkers    int           // rescan link parallelism; 0 means 4
}

// Watcher monitors an output directory and records new image files
// against their originating prompts.
type Watcher struct {
	store ImageStore
	res   Resolver
	opts  Options
	exts  map[string]bool
}

// New creates a Watcher. The directory must exist before Run is called.
func New(store ImageStore, res Resolver, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if opts.RescanInterval == 0 {
		opts.RescanInterval = 5 * time.Minute
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if opts.BusyMaxElapsed == 0 {
		opts.BusyMaxElapsed = 10 * time.Second
	}
	if opts.ScanWorkers <= 0 {
		opts.ScanWorkers = 4
	}
	if opts.Extensions == nil {
		opts.Extensions = []string{".png", ".jpg", ".jpeg", ".webp"}
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Watcher{store: store, res: res, opts: opts, exts: exts}, nil
}

// Run watches until ctx is canceled. It returns nil on cancellation and an
// error only when the watch itself cannot continue.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	// Watch the root and any existing subdirectories; generation pipelines
	// often shard output into date folders.
	if err := w.addDirs(fsw, w.opts.Dir); err != nil {
		return err
	}

	var rescanC <-chan time.Time
	if w.opts.RescanInterval > 0 {
		ticker := time.NewTicker(w.opts.RescanInterval)
		defer ticker.Stop()
		rescanC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watcher error: %v\n", err)
		case <-rescanC:
			if err := w.Rescan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Warning: rescan failed: %v\n", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Renames fire for the old path too; nothing to do for a path
		// that no longer exists.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := fsw.Add(event.Name); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot watch %s: %v\n", event.Name, err)
			}
		}
		return
	}
	if !w.wantsFile(event.Name) {
		return
	}

	// Give the producer time to finish writing before reading size/mtime.
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.opts.SettleDelay):
	}

	if err := w.LinkFile(ctx, event.Name); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not link %s: %v\n", event.Name, err)
	}
}

// LinkFile records a single image file against the prompt the resolver
// names. Files with no resolvable prompt are skipped silently: not every
// file in the output directory comes from a tracked generation.
func (w *Watcher) LinkFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	correlationID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	promptID, ok := w.res.Lookup(correlationID)
	if !ok {
		return nil
	}

	img := &types.GeneratedImage{
		PromptID:       promptID,
		ImagePath:      path,
		Filename:       filepath.Base(path),
		GenerationTime: info.ModTime().UTC(),
		FileSize:       info.Size(),
		Format:         strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}

	// The store rejects writes with a busy error under writer contention;
	// retry briefly instead of dropping the link.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = w.opts.BusyMaxElapsed
	op := func() error {
		_, err := w.store.LinkImage(ctx, img)
		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrBusy) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("link image %s: %w", path, err)
	}
	return nil
}

// Rescan walks the whole output tree, linking any image files the event
// stream may have missed, then removes links whose files are gone.
// Linking is idempotent, so re-reporting known files is harmless.
func (w *Watcher) Rescan(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(w.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && w.wantsFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", w.opts.Dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.ScanWorkers)
	for _, path := range paths {
		g.Go(func() error {
			return w.LinkFile(gctx, path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	removed, err := w.store.CleanupMissingFiles(ctx)
	if err != nil {
		return fmt.Errorf("cleanup missing files: %w", err)
	}
	if removed > 0 {
		fmt.Fprintf(os.Stderr, "Removed %d stale image links\n", removed)
	}
	return nil
}

func (w *Watcher) wantsFile(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) addDirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
