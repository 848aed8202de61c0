package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List and search prompts",
	Long: `List prompts, newest first, optionally filtered.

All filters combine with AND. Tag filters require every listed tag.

EXAMPLES:
  pv list
  pv list --search castle --category landscape
  pv list --tag cyberpunk --tag night --rating-min 4
  pv list --since 2026-01-01 --limit 20
  pv list --top-rated`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topRated, _ := cmd.Flags().GetBool("top-rated")
		untagged, _ := cmd.Flags().GetBool("untagged")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		var prompts []*types.Prompt
		var err error
		switch {
		case topRated:
			prompts, err = store.TopRatedPrompts(rootCtx, limit)
		case untagged:
			prompts, err = store.UntaggedPrompts(rootCtx, limit, offset)
		default:
			var filter types.PromptFilter
			filter, err = filterFromFlags(cmd)
			if err != nil {
				return err
			}
			filter.Limit = limit
			filter.Offset = offset
			prompts, err = store.SearchPrompts(rootCtx, filter)
		}
		if err != nil {
			return err
		}

		if useJSON() {
			outputJSON(prompts)
			return nil
		}
		if len(prompts) == 0 {
			fmt.Println("No prompts found.")
			return nil
		}
		for _, p := range prompts {
			line := fmt.Sprintf("[%d] %s", p.ID, truncate(p.Text, 70))
			if p.Rating != nil {
				line += fmt.Sprintf("  (%d/5)", *p.Rating)
			}
			if p.Category != "" {
				line += "  " + p.Category
			}
			fmt.Println(line)
		}
		return nil
	},
}

// filterFromFlags translates the list/export search flags into a filter.
func filterFromFlags(cmd *cobra.Command) (types.PromptFilter, error) {
	search, _ := cmd.Flags().GetString("search")
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetStringArray("tag")
	ratingMin, _ := cmd.Flags().GetInt("rating-min")
	ratingMax, _ := cmd.Flags().GetInt("rating-max")
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")

	filter := types.PromptFilter{
		TextContains: search,
		Category:     category,
		Tags:         tags,
	}
	if ratingMin > 0 {
		filter.RatingMin = &ratingMin
	}
	if ratingMax > 0 {
		filter.RatingMax = &ratingMax
	}
	if since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since date %q (want YYYY-MM-DD)", since)
		}
		filter.CreatedAfter = &t
	}
	if until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			return filter, fmt.Errorf("invalid --until date %q (want YYYY-MM-DD)", until)
		}
		// Inclusive through the end of the named day.
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedBefore = &end
	}
	return filter, nil
}

// truncate shortens s to at most n display runes. Cutting on runes rather
// than bytes keeps multi-byte prompt text valid UTF-8.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "Case-insensitive substring of the prompt text")
	cmd.Flags().String("category", "", "Exact category match")
	cmd.Flags().StringArray("tag", nil, "Require this tag (repeatable, AND semantics)")
	cmd.Flags().Int("rating-min", 0, "Minimum rating (inclusive)")
	cmd.Flags().Int("rating-max", 0, "Maximum rating (inclusive)")
	cmd.Flags().String("since", "", "Only prompts created on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("until", "", "Only prompts created on or before this date (YYYY-MM-DD)")
}

func init() {
	addSearchFlags(listCmd)
	listCmd.Flags().Bool("top-rated", false, "Show highest-rated prompts instead")
	listCmd.Flags().Bool("untagged", false, "Show prompts with no tags instead")
	listCmd.Flags().Int("limit", 50, "Maximum number of prompts")
	listCmd.Flags().Int("offset", 0, "Number of prompts to skip")
	rootCmd.AddCommand(listCmd)
}
