package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/internal/settings"
	"github.com/khrees2412/applytrack/pkg/models"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage tracked jobs",
	Long:  "Add, list, view, and remove tracked job postings",
}

var addJobCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a job posting",
	Long: `Record a job posting or update one that is already tracked.
Only the fields you pass are changed, everything else keeps its stored value.`,
	Example: `  applytrack job add --id 3812345678 --title "Backend Engineer" --company "Acme Inc"
  applytrack job add --id 3812345678 --location Berlin --remote
  applytrack job add --id 3812345678 --saved --status saved`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			return fmt.Errorf("--id is required: %w", app.ErrInvalidArgument)
		}
		patch := models.JobPatch{ID: id}
		for flag, dst := range map[string]**string{
			"title":    &patch.Title,
			"company":  &patch.Company,
			"url":      &patch.URL,
			"location": &patch.Location,
			"salary":   &patch.Salary,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}
		if cmd.Flags().Changed("remote") {
			v, _ := cmd.Flags().GetBool("remote")
			patch.Remote = &v
		}
		if cmd.Flags().Changed("saved") {
			v, _ := cmd.Flags().GetBool("saved")
			patch.Saved = &v
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			st, err := parseStatus(s)
			if err != nil {
				return err
			}
			patch.Status = &st
		}
		if cmd.Flags().Changed("applied-at") {
			s, _ := cmd.Flags().GetString("applied-at")
			t, err := time.ParseInLocation("2006-01-02", s, application.Jobs.Location())
			if err != nil {
				return fmt.Errorf("--applied-at must be YYYY-MM-DD: %w", app.ErrInvalidArgument)
			}
			ms := t.UnixMilli()
			patch.DateApplied = &ms
		}

		existed, err := application.Jobs.JobExists(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		rec, err := application.Jobs.SaveJob(cmd.Context(), patch)
		if err != nil {
			return fmt.Errorf("save job: %w", err)
		}

		if existed {
			cmd.Printf("✓ Job updated: %s\n", describe(rec))
			return nil
		}
		cmd.Printf("✓ Job added: %s (ID: %s)\n", describe(rec), rec.ID)
		return nil
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs, most recently applied first",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		statusFlag, _ := cmd.Flags().GetString("status")
		all, _ := cmd.Flags().GetBool("all")

		var jobs []models.JobRecord
		if statusFlag != "" {
			st, err := parseStatus(statusFlag)
			if err != nil {
				return err
			}
			if jobs, err = application.Jobs.GetJobsByStatus(ctx, st); err != nil {
				return fmt.Errorf("fetch jobs: %w", err)
			}
		} else if jobs, err = application.Jobs.SearchJobs(ctx, ""); err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}

		prefs, err := application.Settings.Get(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		visible, hidden := jobs[:0:0], 0
		for _, j := range jobs {
			if !all && settings.Hidden(prefs, j) {
				hidden++
				continue
			}
			visible = append(visible, j)
		}
		if limit > 0 && len(visible) > limit {
			visible = visible[:limit]
		}

		if len(visible) == 0 {
			cmd.Println("No jobs found. Record one with 'applytrack job add --id ID'")
		} else {
			cmd.Println(titleStyle.Render("Tracked Jobs"))
			for i, j := range visible {
				printJobSummary(cmd, i+1, j, prefs, application.Jobs.Location())
			}
		}
		if hidden > 0 {
			cmd.Println(mutedStyle.Render(fmt.Sprintf("\n%d hidden by filters, use --all to show them", hidden)))
		}
		return nil
	},
}

var showJobCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job with its notes and status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		job, ok, err := application.Jobs.GetJob(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("fetch job: %w", err)
		}
		if !ok {
			return fmt.Errorf("job %s: %w", args[0], app.ErrNotFound)
		}
		prefs, err := application.Settings.Get(cmd.Context())
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		printJobDetails(cmd, job, prefs, application.Jobs.Location())
		return nil
	},
}

var removeJobCmd = &cobra.Command{
	Use:     "remove <job-id>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking a job",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		ok, err := application.Jobs.JobExists(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if !ok {
			return fmt.Errorf("job %s: %w", args[0], app.ErrNotFound)
		}
		if err := application.Jobs.DeleteJob(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove job: %w", err)
		}
		cmd.Printf("✓ Job %s removed\n", args[0])
		return nil
	},
}

func describe(j models.JobRecord) string {
	title, company := j.Title, j.Company
	if title == "" {
		title = "Untitled"
	}
	if company == "" {
		return title
	}
	return fmt.Sprintf("%s at %s", title, company)
}

func printJobSummary(cmd *cobra.Command, n int, j models.JobRecord, prefs models.Settings, loc *time.Location) {
	cmd.Printf("\n%s. %s\n", labelStyle.Render(fmt.Sprintf("%d", n)), describe(j))
	cmd.Printf("   %s %s\n", labelStyle.Render("ID:"), j.ID)
	cmd.Printf("   %s %s\n", labelStyle.Render("Status:"), statusStyle(prefs, j.Status).Render(statusLabel(j.Status)))
	cmd.Printf("   %s %s\n", labelStyle.Render("Applied:"), formatDate(j.DateApplied, loc))
	if j.Metadata.Location != "" {
		cmd.Printf("   %s %s\n", labelStyle.Render("Location:"), j.Metadata.Location)
	}
}

func printJobDetails(cmd *cobra.Command, j models.JobRecord, prefs models.Settings, loc *time.Location) {
	cmd.Println(titleStyle.Render(describe(j)))
	cmd.Printf("%s %s\n", labelStyle.Render("ID:"), j.ID)
	cmd.Printf("%s %s\n", labelStyle.Render("Status:"), statusStyle(prefs, j.Status).Render(statusLabel(j.Status)))
	if j.URL != "" {
		cmd.Printf("%s %s\n", labelStyle.Render("URL:"), valueStyle.Render(j.URL))
	}
	if j.Metadata.Location != "" {
		cmd.Printf("%s %s\n", labelStyle.Render("Location:"), j.Metadata.Location)
	}
	if j.Metadata.Salary != "" {
		cmd.Printf("%s %s\n", labelStyle.Render("Salary:"), j.Metadata.Salary)
	}
	if j.Metadata.Remote {
		cmd.Printf("%s %s\n", labelStyle.Render("Remote:"), "yes")
	}
	if j.Saved {
		cmd.Printf("%s %s\n", labelStyle.Render("Saved:"), "yes")
	}
	cmd.Printf("%s %s\n", labelStyle.Render("Applied:"), formatDate(j.DateApplied, loc))
	cmd.Printf("%s %s\n", labelStyle.Render("Added:"), formatDate(j.DateAdded, loc))

	if len(j.StatusHistory) > 0 {
		cmd.Printf("\n%s\n", labelStyle.Render("History"))
		for _, h := range j.StatusHistory {
			cmd.Printf("  %s  %s\n", formatDate(h.Timestamp, loc), statusStyle(prefs, h.Status).Render(statusLabel(h.Status)))
		}
	}
	if len(j.Notes) > 0 {
		cmd.Printf("\n%s\n", labelStyle.Render("Notes"))
		for _, n := range j.Notes {
			cmd.Printf("  %s  %s\n", mutedStyle.Render(n.ID), formatDate(n.Timestamp, loc))
			cmd.Printf("    %s\n", n.Text)
		}
	}
}

// notFound turns a missing job into a friendlier message
func notFound(err error, id string) error {
	if errors.Is(err, jobstore.ErrNotFound) {
		return fmt.Errorf("job %s is not tracked: %w", id, app.ErrNotFound)
	}
	return err
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(addJobCmd)
	jobCmd.AddCommand(listJobsCmd)
	jobCmd.AddCommand(showJobCmd)
	jobCmd.AddCommand(removeJobCmd)

	addJobCmd.Flags().String("id", "", "Job posting id (required)")
	addJobCmd.Flags().String("title", "", "Job title")
	addJobCmd.Flags().String("company", "", "Company name")
	addJobCmd.Flags().String("url", "", "Posting URL, derived from the id when empty")
	addJobCmd.Flags().String("location", "", "Job location")
	addJobCmd.Flags().String("salary", "", "Salary as shown on the posting")
	addJobCmd.Flags().Bool("remote", false, "Remote position")
	addJobCmd.Flags().Bool("saved", false, "Mark the job as saved")
	addJobCmd.Flags().String("status", "", "Initial status for a new job")
	addJobCmd.Flags().String("applied-at", "", "Date applied, YYYY-MM-DD")

	listJobsCmd.Flags().String("status", "", "Only list jobs with this status")
	listJobsCmd.Flags().Int("limit", 0, "Maximum number of jobs to list")
	listJobsCmd.Flags().Bool("all", false, "Include jobs hidden by filters and the company blacklist")
}
