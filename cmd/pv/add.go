package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/types"
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Save a prompt",
	Long: `Save a prompt to the vault.

Saving the same text again (ignoring case and surrounding whitespace)
updates the existing prompt instead of creating a duplicate.

EXAMPLES:
  pv add "a castle at dawn, volumetric light"
  pv add "portrait of a fox" --category portrait --rating 4
  pv add "cyberpunk alley" --tag cyberpunk --tag night --notes "use karras"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		notes, _ := cmd.Flags().GetString("notes")
		rating, _ := cmd.Flags().GetInt("rating")
		tags, _ := cmd.Flags().GetStringArray("tag")

		prompt := &types.Prompt{
			Text:     strings.Join(args, " "),
			Category: category,
			Notes:    notes,
			Tags:     tags,
		}
		if rating != 0 {
			prompt.Rating = &rating
		}

		id, err := store.SavePrompt(rootCtx, prompt)
		if err != nil {
			return err
		}

		saved, err := store.GetPrompt(rootCtx, id)
		if err != nil {
			return err
		}
		if useJSON() {
			outputJSON(saved)
			return nil
		}
		fmt.Printf("Saved prompt %d\n", id)
		return nil
	},
}

func init() {
	addCmd.Flags().String("category", "", "Category for the prompt")
	addCmd.Flags().String("notes", "", "Free-form notes")
	addCmd.Flags().Int("rating", 0, "Rating 1-5")
	addCmd.Flags().StringArray("tag", nil, "Tag to attach (repeatable)")
	rootCmd.AddCommand(addCmd)
}
