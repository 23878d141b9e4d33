package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View application statistics",
	Long:  "Display totals, the status breakdown and weekly application trends",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		refresh, _ := cmd.Flags().GetBool("refresh")

		var stats models.Statistics
		if refresh {
			stats, err = application.Jobs.UpdateStatistics(ctx)
		} else {
			stats, err = application.Jobs.GetStatistics(ctx)
		}
		if err != nil {
			return fmt.Errorf("fetch statistics: %w", err)
		}

		if stats.TotalApplications == 0 {
			cmd.Println("No applications yet. Record one with 'applytrack job add --id ID'")
			return nil
		}

		prefs, err := application.Settings.Get(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		thisWeek, err := application.Jobs.ThisWeekCount(ctx)
		if err != nil {
			return fmt.Errorf("count this week: %w", err)
		}
		size, err := application.Jobs.StorageSize(ctx)
		if err != nil {
			return fmt.Errorf("storage size: %w", err)
		}
		loc := application.Jobs.Location()

		cmd.Println(titleStyle.Render("Application Statistics"))

		cmd.Printf("%s\n", labelStyle.Render("Overview"))
		cmd.Printf("  Total Applications: %d\n", stats.TotalApplications)
		cmd.Printf("  This Week: %d\n", thisWeek)
		if responded := stats.StatusBreakdown[models.StatusInterviewing] + stats.StatusBreakdown[models.StatusOffer] +
			stats.StatusBreakdown[models.StatusRejected]; responded > 0 {
			cmd.Printf("  Response Rate: %.1f%%\n", float64(responded)/float64(stats.TotalApplications)*100)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Status Breakdown"))
		for _, status := range models.KnownStatuses() {
			count := stats.StatusBreakdown[status]
			percentage := float64(count) / float64(stats.TotalApplications) * 100
			cmd.Printf("  %-14s %3d (%.1f%%)\n", statusStyle(prefs, status).Render(statusLabel(status)+":"), count, percentage)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Weekly Trend"))
		window := jobstore.TrendWindow(time.UnixMilli(stats.LastUpdated), loc, application.Config.TrendWeeks)
		peak := 0
		for _, w := range window {
			peak = max(peak, stats.WeeklyTrends[w])
		}
		for _, w := range window {
			n := stats.WeeklyTrends[w]
			cmd.Printf("  %s %3d %s\n", w, n, bar(n, peak, 30))
		}

		cmd.Printf("\n%s %s\n", labelStyle.Render("Last Updated:"), formatDate(stats.LastUpdated, loc))
		cmd.Printf("%s %s\n", labelStyle.Render("Storage Used:"), formatBytes(size))
		return nil
	},
}

func bar(n, peak, width int) string {
	if peak == 0 || n == 0 {
		return ""
	}
	return valueStyle.Render(strings.Repeat("█", max(1, n*width/peak)))
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("refresh", false, "Recompute statistics from all tracked jobs")
}
