package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/types"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagSetCmd = &cobra.Command{
	Use:   "set <prompt-id> [tags...]",
	Short: "Replace a prompt's tags",
	Long: `Replace a prompt's tags with the given set. No tags clears them all.

Tag names a prompt stops using stay in the vocabulary for reuse; delete
them explicitly with 'pv tag delete'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}
		if err := store.SetPromptTags(rootCtx, id, args[1:]); err != nil {
			return err
		}
		fmt.Printf("Tags updated for prompt %d\n", id)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with usage counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		byCount, _ := cmd.Flags().GetBool("by-count")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		sort := storage.TagSortName
		if byCount {
			sort = storage.TagSortCount
		}
		counts, err := store.ListTagCounts(rootCtx, storage.TagListOptions{
			Search: search,
			Sort:   sort,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return err
		}

		if useJSON() {
			outputJSON(counts)
			return nil
		}
		if len(counts) == 0 {
			fmt.Println("No tags found.")
			return nil
		}
		for _, tc := range counts {
			fmt.Printf("%-30s %d\n", tc.Name, tc.Count)
		}
		return nil
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a tag",
	Long: `Rename a tag everywhere it is used.

Renaming onto an existing tag merges the two: prompts carrying the old
name end up carrying the new one, with no duplicates.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := store.RenameTag(rootCtx, args[0], args[1])
		if err != nil {
			return err
		}
		reportTagMutation(fmt.Sprintf("Renamed %q to %q", args[0], args[1]), res)
		return nil
	},
}

var tagMergeCmd = &cobra.Command{
	Use:   "merge <target> <source...>",
	Short: "Merge tags into one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := store.MergeTags(rootCtx, args[1:], args[0])
		if err != nil {
			return err
		}
		reportTagMutation(fmt.Sprintf("Merged into %q", args[0]), res)
		return nil
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a tag from every prompt and the vocabulary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := store.DeleteTag(rootCtx, args[0])
		if err != nil {
			return err
		}
		reportTagMutation(fmt.Sprintf("Deleted %q", args[0]), res)
		return nil
	},
}

func reportTagMutation(action string, res types.TagMutationResult) {
	if useJSON() {
		outputJSON(res)
		return
	}
	fmt.Printf("%s (%d prompts affected", action, res.PromptsAffected)
	if res.PromptsSkipped > 0 {
		fmt.Printf(", %d skipped due to unreadable legacy tag data", res.PromptsSkipped)
	}
	fmt.Println(")")
}

func init() {
	tagListCmd.Flags().String("search", "", "Filter tags by substring")
	tagListCmd.Flags().Bool("by-count", false, "Sort by usage count instead of name")
	tagListCmd.Flags().Int("limit", 0, "Maximum number of tags (0 = all)")
	tagListCmd.Flags().Int("offset", 0, "Number of tags to skip")

	tagCmd.AddCommand(tagSetCmd, tagListCmd, tagRenameCmd, tagMergeCmd, tagDeleteCmd)
	rootCmd.AddCommand(tagCmd)
}
