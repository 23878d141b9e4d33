package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/settings"
	"github.com/khrees2412/applytrack/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View jobs grouped by status",
	Long:  "View and manage the status of your tracked jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		filterStatus, _ := cmd.Flags().GetString("filter")
		if filterStatus != "" {
			if _, err := parseStatus(filterStatus); err != nil {
				return err
			}
		}

		jobs, err := application.Jobs.SearchJobs(ctx, "")
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		if len(jobs) == 0 {
			cmd.Println("No jobs tracked yet. Record one with 'applytrack job add --id ID'")
			return nil
		}
		prefs, err := application.Settings.Get(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}

		groups := map[models.Status][]models.JobRecord{}
		var other []models.Status
		for _, j := range jobs {
			if settings.Hidden(prefs, j) {
				continue
			}
			if filterStatus != "" && string(j.Status) != filterStatus {
				continue
			}
			if _, seen := groups[j.Status]; !seen && !j.Status.Known() {
				other = append(other, j.Status)
			}
			groups[j.Status] = append(groups[j.Status], j)
		}

		if len(groups) == 0 {
			cmd.Printf("No jobs with status '%s'\n", filterStatus)
			return nil
		}

		cmd.Println(titleStyle.Render("Your Applications"))
		loc := application.Jobs.Location()
		for _, status := range append(models.KnownStatuses(), other...) {
			list := groups[status]
			if len(list) == 0 {
				continue
			}
			cmd.Printf("\n%s (%d)\n", statusStyle(prefs, status).Render(statusLabel(status)), len(list))
			for _, j := range list {
				cmd.Printf("  • %s\n", describe(j))
				cmd.Printf("    %s %s | Applied: %s", labelStyle.Render("ID:"), j.ID, formatDate(j.DateApplied, loc))
				if n := len(j.Notes); n > 0 {
					cmd.Printf(" | %d note(s)", n)
				}
				cmd.Println()
			}
		}
		return nil
	},
}

var updateStatusCmd = &cobra.Command{
	Use:   "update <job-id>",
	Short: "Change the status of a job",
	Example: `  applytrack status update 3812345678 --status interviewing
  applytrack status update 3812345678 --status offer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		s, _ := cmd.Flags().GetString("status")
		status, err := parseStatus(s)
		if err != nil {
			return err
		}

		if err := application.Jobs.UpdateStatus(cmd.Context(), args[0], status); err != nil {
			return notFound(err, args[0])
		}
		cmd.Printf("✓ Job %s is now %s\n", args[0], statusLabel(status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(updateStatusCmd)

	statusCmd.Flags().String("filter", "", "Only show jobs with this status")
	updateStatusCmd.Flags().String("status", "", "New status (required)")
	_ = updateStatusCmd.MarkFlagRequired("status")
}
