package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove duplicate prompts and stale image links",
	Long: `Remove duplicate prompts and stale image links.

Duplicate prompts are rows whose text normalizes to the same value;
the oldest row survives and absorbs nothing, the rest are deleted along
with their images and tag links. Stale image links are rows whose file no
longer exists on disk.

EXAMPLES:
  pv cleanup                   # both passes
  pv cleanup --duplicates      # only duplicate prompts
  pv cleanup --missing-files   # only stale image links`,
	RunE: func(cmd *cobra.Command, args []string) error {
		duplicates, _ := cmd.Flags().GetBool("duplicates")
		missing, _ := cmd.Flags().GetBool("missing-files")
		// No selector means both.
		if !duplicates && !missing {
			duplicates, missing = true, true
		}

		result := struct {
			DuplicatesRemoved int `json:"duplicates_removed"`
			StaleLinksRemoved int `json:"stale_links_removed"`
		}{}

		if duplicates {
			n, err := store.CleanupDuplicatePrompts(rootCtx)
			if err != nil {
				return err
			}
			result.DuplicatesRemoved = n
		}
		if missing {
			n, err := store.CleanupMissingFiles(rootCtx)
			if err != nil {
				return err
			}
			result.StaleLinksRemoved = n
		}

		if useJSON() {
			outputJSON(result)
			return nil
		}
		if duplicates {
			fmt.Printf("Removed %d duplicate prompts\n", result.DuplicatesRemoved)
		}
		if missing {
			fmt.Printf("Removed %d stale image links\n", result.StaleLinksRemoved)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Bool("duplicates", false, "Remove duplicate prompts")
	cleanupCmd.Flags().Bool("missing-files", false, "Remove image links whose files are gone")
	rootCmd.AddCommand(cleanupCmd)
}
