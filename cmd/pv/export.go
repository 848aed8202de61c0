package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prompts as JSON or CSV",
	Long: `Export prompts as JSON or CSV.

Accepts the same filters as 'pv list'; with no filters, exports everything.
Output goes to stdout unless --out names a file.

EXAMPLES:
  pv export > prompts.json
  pv export --format csv --out prompts.csv
  pv export --category landscape --rating-min 4`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		prompts, err := store.SearchPrompts(rootCtx, filter)
		if err != nil {
			return err
		}

		w := os.Stdout
		if outPath != "" {
			var f *os.File
			f, err = os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			w = f
		}

		switch format {
		case "json":
			err = export.WriteJSON(w, prompts)
		case "csv":
			err = export.WriteCSV(w, prompts)
		default:
			return fmt.Errorf("unknown format %q (want json or csv)", format)
		}
		if err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(os.Stderr, "Exported %d prompts to %s\n", len(prompts), outPath)
		}
		return nil
	},
}

func init() {
	addSearchFlags(exportCmd)
	exportCmd.Flags().String("format", "json", "Output format: json or csv")
	exportCmd.Flags().String("out", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
