package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "applytrack",
	Short: "Track the jobs you applied to",
	Long: `Applytrack keeps a local record of job postings you applied to, viewed or saved.
It tracks status changes and notes per job, keeps weekly statistics and
migrates data recorded by older versions.`,
	Version:       "0.2.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dbPath, _ := cmd.Flags().GetString("db")
		debug, _ := cmd.Flags().GetBool("debug")

		application, err := app.NewApp(cmd.Context(), app.Options{
			ConfigPath: configPath,
			DBPath:     dbPath,
			Debug:      debug,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		current = application
		cmd.SetContext(app.WithApp(cmd.Context(), application))

		// migrate subcommands drive the engine themselves
		if isMigrateCmd(cmd) {
			return nil
		}
		res := application.Startup(cmd.Context())
		if res.Success && res.Migrated && res.Details != nil {
			cmd.PrintErrf("✓ Updated stored data, %d job applications migrated\n", res.Details.SuccessCount)
		}
		if !res.Success {
			cmd.PrintErrf("✗ Migration failed: %s\n  Your data was left as it was. See 'applytrack migrate status'.\n", res.Error)
		}
		return nil
	},
}

// current is closed by Execute once the command is done
var current *app.App

func isMigrateCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == migrateCmd {
			return true
		}
	}
	return false
}

// Execute runs the root command
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		current.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, app.ErrMigrationPending) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// readyApp returns the application for commands that read or write jobs
func readyApp(cmd *cobra.Command) (*app.App, error) {
	application, err := app.FromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := application.Ready(); err != nil {
		return nil, err
	}
	return application, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.applytrack/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database file, overrides db_path")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}
