package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/types"
)

var imagesCmd = &cobra.Command{
	Use:   "images [prompt-id]",
	Short: "List generated images",
	Long: `List generated images.

With a prompt id, lists that prompt's images. Without one, lists the most
recent images across all prompts. With --search, finds images whose
originating prompt text contains the given substring.

EXAMPLES:
  pv images 42
  pv images --limit 10
  pv images --search "castle"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		var images []*types.GeneratedImage
		var err error
		switch {
		case len(args) == 1:
			var id int64
			id, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid prompt id %q", args[0])
			}
			images, err = store.ImagesForPrompt(rootCtx, id)
		case search != "":
			images, err = store.SearchImages(rootCtx, search, limit)
		default:
			images, err = store.RecentImages(rootCtx, limit, true)
		}
		if err != nil {
			return err
		}

		if useJSON() {
			outputJSON(images)
			return nil
		}
		if len(images) == 0 {
			fmt.Println("No images found.")
			return nil
		}
		for _, img := range images {
			line := fmt.Sprintf("[%d] %s", img.ID, img.ImagePath)
			if img.PromptText != "" {
				line += fmt.Sprintf("  %q", truncate(img.PromptText, 50))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var imagesDeleteCmd = &cobra.Command{
	Use:   "delete <image-id>",
	Short: "Remove an image link (does not touch the file)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid image id %q", args[0])
		}
		affected, err := store.DeleteImage(rootCtx, id)
		if err != nil {
			return err
		}
		if !affected {
			fmt.Printf("No image with id %d\n", id)
			return nil
		}
		fmt.Printf("Removed image link %d\n", id)
		return nil
	},
}

var imagesLinkCmd = &cobra.Command{
	Use:   "link <prompt-id> <path>",
	Short: "Manually link an image file to a prompt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		promptID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id %q", args[0])
		}
		img := &types.GeneratedImage{PromptID: promptID, ImagePath: args[1]}
		id, err := store.LinkImage(rootCtx, img)
		if err != nil {
			return err
		}
		fmt.Printf("Linked %s to prompt %d (image %d)\n", strings.TrimSpace(args[1]), promptID, id)
		return nil
	},
}

func init() {
	imagesCmd.Flags().String("search", "", "Find images by originating prompt text")
	imagesCmd.Flags().Int("limit", 50, "Maximum number of images")
	imagesCmd.AddCommand(imagesDeleteCmd, imagesLinkCmd)
	rootCmd.AddCommand(imagesCmd)
}
