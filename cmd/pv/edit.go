package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/types"
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update fields of a prompt",
	Long: `Update fields of a prompt. Only the flags you pass change anything.

EXAMPLES:
  pv edit 42 --rating 5
  pv edit 42 --category portrait --notes "works best at cfg 7"
  pv edit 42 --text "reworded prompt text"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}

		var params types.UpdatePromptParams
		if cmd.Flags().Changed("text") {
			text, _ := cmd.Flags().GetString("text")
			params.Text = &text
		}
		if cmd.Flags().Changed("category") {
			category, _ := cmd.Flags().GetString("category")
			params.Category = &category
		}
		if cmd.Flags().Changed("notes") {
			notes, _ := cmd.Flags().GetString("notes")
			params.Notes = &notes
		}
		if cmd.Flags().Changed("rating") {
			rating, _ := cmd.Flags().GetInt("rating")
			params.Rating = &rating
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringArray("tag")
			params.Tags = &tags
		}
		if params.IsZero() {
			return fmt.Errorf("nothing to update: pass at least one of --text, --category, --notes, --rating, --tag")
		}

		affected, err := store.UpdatePrompt(rootCtx, id, params)
		if err != nil {
			return err
		}
		if !affected {
			fmt.Printf("No prompt with id %d\n", id)
			return nil
		}
		fmt.Printf("Updated prompt %d\n", id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a prompt and its image links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}
		affected, err := store.DeletePrompt(rootCtx, id)
		if err != nil {
			return err
		}
		if !affected {
			fmt.Printf("No prompt with id %d\n", id)
			return nil
		}
		fmt.Printf("Deleted prompt %d\n", id)
		return nil
	},
}

func init() {
	editCmd.Flags().String("text", "", "New prompt text")
	editCmd.Flags().String("category", "", "New category")
	editCmd.Flags().String("notes", "", "New notes")
	editCmd.Flags().Int("rating", 0, "New rating 1-5")
	editCmd.Flags().StringArray("tag", nil, "Replace tags with this set (repeatable)")
	rootCmd.AddCommand(editCmd, deleteCmd)
}
