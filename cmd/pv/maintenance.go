package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := store.GetStatistics(rootCtx)
		if err != nil {
			return err
		}
		if useJSON() {
			outputJSON(stats)
			return nil
		}
		fmt.Printf("Prompts:    %d\n", stats.TotalPrompts)
		fmt.Printf("Images:     %d\n", stats.TotalImages)
		fmt.Printf("Categories: %d\n", stats.DistinctCategories)
		fmt.Printf("Tags:       %d\n", stats.DistinctTags)
		if stats.AverageRating != nil {
			fmt.Printf("Avg rating: %.2f\n", *stats.AverageRating)
		}
		fmt.Printf("DB size:    %d bytes\n", stats.DatabaseSizeBytes)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database consistency",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := store.CheckConsistency(rootCtx)
		if err != nil {
			return err
		}
		if useJSON() {
			outputJSON(report)
			return nil
		}
		if report.TotalIssues == 0 {
			fmt.Println("No consistency issues found.")
			return nil
		}
		fmt.Printf("Found %d issues:\n", report.TotalIssues)
		for _, issue := range report.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		if report.TotalIssues > len(report.Issues) {
			fmt.Printf("  ... and %d more\n", report.TotalIssues-len(report.Issues))
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [dest]",
	Short: "Copy the database to a backup file",
	Long: `Copy the database to a backup file.

Without a destination, writes a timestamped file next to the database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := ""
		if len(args) == 1 {
			dest = args[0]
		} else {
			dest = storage.BackupName(store.Path(), time.Now())
		}
		if err := store.Backup(rootCtx, dest); err != nil {
			return err
		}
		fmt.Printf("Backed up to %s\n", dest)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the database with a backup file",
	Long: `Replace the database with a backup file.

The incoming file is validated before anything is touched, and the
current database is backed up first, so a bad restore never loses data.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Fprintf(os.Stderr, "This replaces the current database. Re-run with --force to proceed.\n")
			return nil
		}
		if err := store.Restore(rootCtx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Restored from %s\n", args[0])
		return nil
	},
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim unused database space",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Vacuum(rootCtx); err != nil {
			return err
		}
		fmt.Println("Database vacuumed.")
		return nil
	},
}

func init() {
	restoreCmd.Flags().Bool("force", false, "Actually perform the restore")
	rootCmd.AddCommand(statsCmd, checkCmd, backupCmd, restoreCmd, vacuumCmd)
}
