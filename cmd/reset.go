package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all tracked data",
	Long:  "Delete every tracked job, note, setting and statistic, then restore the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("reset deletes all tracked jobs, pass --yes to confirm: %w", app.ErrInvalidArgument)
		}
		if err := application.Jobs.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("clear data: %w", err)
		}
		cmd.Println("✓ All data cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("yes", false, "Confirm deleting all data")
}
