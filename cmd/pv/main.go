// pv is the command-line interface to the prompt vault: an embedded
// SQLite store of prompts, tags, and the images generated from them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/storage"
	"github.com/promptvault/promptvault/internal/storage/sqlite"
	"github.com/promptvault/promptvault/internal/telemetry"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"

	store      storage.Storage
	rootCtx    context.Context
	stopSignal context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "pv",
	Short: "pv - prompt vault for generated images",
	Long: `Store, search, and tag the prompts you generate images with, and keep
track of which files each prompt produced.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, stopSignal = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}

		if err := telemetry.Init(rootCtx, "pv", Version); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry init: %v\n", err)
		}

		path := config.GetString("db")
		s, err := sqlite.New(rootCtx, path)
		if err != nil {
			return fmt.Errorf("open database %s: %w", path, err)
		}
		store = telemetry.WrapStorage(s)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: closing database: %v\n", err)
			}
			store = nil
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		telemetry.Shutdown(flushCtx)
		cancel()

		if stopSignal != nil {
			stopSignal()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("pv version %s\n", Version)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	// Reads go through viper so flag, env, and config file share precedence.
	rootCmd.PersistentFlags().String("db", "", "Database path (default: ~/.config/promptvault/prompts.db, or $PV_DB)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	if err := config.BindFlag("db", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: binding --db flag: %v\n", err)
	}
	if err := config.BindFlag("json", rootCmd.PersistentFlags().Lookup("json")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: binding --json flag: %v\n", err)
	}
}

// useJSON reports whether output should be JSON, honoring flag, env, and
// config file precedence.
func useJSON() bool {
	return config.GetBool("json")
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
