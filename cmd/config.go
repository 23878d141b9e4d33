package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := application.Config

		cmd.Println(titleStyle.Render("Configuration"))
		cmd.Printf("%s %s\n", labelStyle.Render("Config File:"), application.ConfigPath)
		cmd.Printf("%s %s\n", labelStyle.Render("Database:"), cfg.DBPath)
		cmd.Printf("%s %s\n", labelStyle.Render("Timezone:"), cfg.Timezone)
		cmd.Printf("%s %d\n", labelStyle.Render("Trend Weeks:"), cfg.TrendWeeks)
		cmd.Printf("%s %d\n", labelStyle.Render("Max Note Length:"), cfg.MaxNoteLength)
		cmd.Printf("%s %s\n", labelStyle.Render("Job URL Template:"), cfg.JobURLTemplate)
		cmd.Printf("%s %d\n", labelStyle.Render("Write Retries:"), cfg.WriteRetries)
		cmd.Printf("%s %s\n", labelStyle.Render("Watch Interval:"), cfg.WatchInterval)

		logTo := "stderr"
		switch {
		case !cfg.Log.Enabled:
			logTo = "disabled"
		case cfg.Log.File != "":
			logTo = cfg.Log.File
		}
		cmd.Printf("%s %s\n", labelStyle.Render("Logging:"), logTo)
		if cfg.Log.Debug {
			cmd.Printf("%s %s\n", labelStyle.Render("Debug:"), "✓ Enabled")
		}
		return nil
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a configuration value",
	Example: `  applytrack config set --key timezone --value Europe/Berlin
  applytrack config set --key trend_weeks --value 26
  applytrack config set --key log.file --value ~/.applytrack/applytrack.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" || value == "" {
			return fmt.Errorf("both --key and --value are required: %w", app.ErrInvalidArgument)
		}

		if err := config.Set(application.ConfigPath, key, value); err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		cmd.Printf("✓ Configuration updated: %s\n", key)
		return nil
	},
}

var getConfigCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		v, err := config.Get(application.ConfigPath, args[0])
		if err != nil {
			return err
		}
		cmd.Println(v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)
	configCmd.AddCommand(getConfigCmd)

	setConfigCmd.Flags().String("key", "", fmt.Sprintf("Configuration key, one of %v", config.Keys()))
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
