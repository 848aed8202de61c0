package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a prompt with its tags and images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}

		prompt, err := store.GetPrompt(rootCtx, id)
		if err != nil {
			return err
		}
		images, err := store.ImagesForPrompt(rootCtx, id)
		if err != nil {
			return err
		}

		if useJSON() {
			outputJSON(struct {
				Prompt *types.Prompt           `json:"prompt"`
				Images []*types.GeneratedImage `json:"images"`
			}{prompt, images})
			return nil
		}

		printPrompt(prompt)
		if len(images) > 0 {
			fmt.Printf("\nImages (%d):\n", len(images))
			for _, img := range images {
				fmt.Printf("  [%d] %s (%s)\n", img.ID, img.ImagePath, img.GenerationTime.Local().Format("2006-01-02 15:04"))
			}
		}
		return nil
	},
}

func printPrompt(p *types.Prompt) {
	fmt.Printf("Prompt %d\n", p.ID)
	fmt.Printf("  Text:     %s\n", p.Text)
	if p.Category != "" {
		fmt.Printf("  Category: %s\n", p.Category)
	}
	if p.Rating != nil {
		fmt.Printf("  Rating:   %d/5\n", *p.Rating)
	}
	if len(p.Tags) > 0 {
		fmt.Printf("  Tags:     %s\n", strings.Join(p.Tags, ", "))
	}
	if p.Notes != "" {
		fmt.Printf("  Notes:    %s\n", p.Notes)
	}
	fmt.Printf("  Created:  %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
}

func init() {
	rootCmd.AddCommand(showCmd)
}
