package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/internal/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect and manage the stored data format",
	Long: `Data recorded by version 1 only kept job ids and the time you applied.
It is upgraded automatically on the first run of any other command. These commands
let you inspect the upgrade, run it by hand, undo it or import an old export.`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		st, err := application.Migrator.Status(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, st)
		}

		cmd.Println(titleStyle.Render("Migration Status"))
		cmd.Printf("%s v%d\n", labelStyle.Render("Stored Version:"), st.CurrentVersion)
		cmd.Printf("%s v%d\n", labelStyle.Render("Target Version:"), st.TargetVersion)
		cmd.Printf("%s %s\n", labelStyle.Render("Needs Migration:"), yesNo(st.NeedsMigration))
		cmd.Printf("%s %s\n", labelStyle.Render("Legacy Data:"), yesNo(st.HasLegacyData))
		cmd.Printf("%s %s\n", labelStyle.Render("Backup:"), yesNo(st.HasBackup))
		return nil
	},
}

var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upgrade legacy data now",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		res := application.Startup(cmd.Context())
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			return res.Err
		}
		if !res.Success {
			return fmt.Errorf("migration failed, data left unchanged: %w", res.Err)
		}
		if !res.Migrated {
			cmd.Printf("✓ Nothing to do: %s\n", res.Message)
			return nil
		}

		d := res.Details
		cmd.Printf("✓ Migrated %d of %d job applications\n", d.SuccessCount, d.TotalJobs)
		for _, s := range d.Skipped {
			cmd.Printf("  %s %s\n", mutedStyle.Render("skipped"), s.Error())
		}
		for _, r := range d.Repaired {
			cmd.Printf("  %s %s\n", mutedStyle.Render("repaired"), r.Error())
		}
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the legacy data from the backup",
	Long: `Restore the version 1 data from the backup taken before the upgrade.
Jobs, settings and statistics stored since then are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("rollback removes all current data, pass --yes to confirm: %w", app.ErrInvalidArgument)
		}
		if err := application.Migrator.Rollback(cmd.Context()); err != nil {
			if errors.Is(err, migration.ErrNoBackup) {
				return fmt.Errorf("nothing to roll back to: %w", err)
			}
			return err
		}
		cmd.Println("✓ Legacy data restored. It will be upgraded again on the next run.")
		return nil
	},
}

var migrateCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the backup of the legacy data",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := application.Migrator.CleanupBackup(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("✓ Backup removed")
		return nil
	},
}

var migrateImportCmd = &cobra.Command{
	Use:     "import <file>",
	Short:   "Import a version 1 export and upgrade it",
	Example: `  applytrack migrate import appliedJobIds.json --force`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open export: %w", err)
		}
		defer f.Close()

		if force, _ := cmd.Flags().GetBool("force"); force {
			if err := application.KV.Clear(ctx); err != nil {
				return fmt.Errorf("clear stored data: %w", err)
			}
		}
		n, err := application.Migrator.ImportLegacy(ctx, f)
		if errors.Is(err, migration.ErrAlreadyMigrated) {
			return fmt.Errorf("this store already holds current data, pass --force to replace it: %w", err)
		}
		if err != nil {
			return err
		}
		cmd.Printf("✓ Imported %d legacy entries\n", n)

		res := application.Startup(ctx)
		if !res.Success {
			return fmt.Errorf("migration failed: %w", res.Err)
		}
		if res.Details != nil {
			cmd.Printf("✓ Migrated %d of %d job applications\n", res.Details.SuccessCount, res.Details.TotalJobs)
		}
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateRunCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
	migrateCmd.AddCommand(migrateCleanupCmd)
	migrateCmd.AddCommand(migrateImportCmd)

	migrateStatusCmd.Flags().Bool("json", false, "Print the status as JSON")
	migrateRunCmd.Flags().Bool("json", false, "Print the result as JSON")
	migrateRollbackCmd.Flags().Bool("yes", false, "Confirm the rollback")
	migrateImportCmd.Flags().Bool("force", false, "Replace all stored data with the import")
}
