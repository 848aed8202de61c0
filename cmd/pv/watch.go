package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/tracker"
	"github.com/promptvault/promptvault/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <prompt-id>",
	Short: "Watch an output directory and link new images to a prompt",
	Long: `Watch an output directory and link new image files to a prompt.

Every image file created under the directory while watching is recorded
against the given prompt. A periodic rescan picks up files the event
stream missed and prunes links whose files have been deleted.

EXAMPLES:
  pv watch 42 --dir ~/comfy/output
  PV_WATCH_DIR=~/comfy/output pv watch 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		promptID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}
		// Fail fast on a bad id before entering the watch loop.
		if _, err := store.GetPrompt(rootCtx, promptID); err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = config.GetString("watch-dir")
		}
		if dir == "" {
			return fmt.Errorf("no watch directory: pass --dir or set PV_WATCH_DIR")
		}

		tr := tracker.New(config.GetDuration("tracker-ttl"))
		tr.Bind("watch", promptID)

		w, err := watcher.New(store, trackerKeepAlive{tr, promptID}, watcher.Options{
			Dir:            dir,
			RescanInterval: config.GetDuration("rescan-interval"),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Watching %s for prompt %d... (Press Ctrl+C to exit)\n", dir, promptID)
		return w.Run(rootCtx)
	},
}

// trackerKeepAlive refreshes the binding on every successful lookup so a
// long watch session never expires while files keep arriving.
type trackerKeepAlive struct {
	tr       *tracker.Tracker
	promptID int64
}

func (k trackerKeepAlive) Lookup(correlationID string) (int64, bool) {
	id, ok := k.tr.Lookup(correlationID)
	if ok {
		k.tr.Bind("watch", k.promptID)
	}
	return id, ok
}

func init() {
	watchCmd.Flags().String("dir", "", "Output directory to watch (or $PV_WATCH_DIR / config watch-dir)")
	rootCmd.AddCommand(watchCmd)
}
