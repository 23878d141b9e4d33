package cmd

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow changes to the tracked data",
	Long: `Print a line whenever jobs, settings or statistics change, including changes
made by other applytrack processes. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		refresh, _ := cmd.Flags().GetBool("refresh-stats")

		g, ctx := errgroup.WithContext(cmd.Context())
		changes := application.KV.Watch(ctx)
		jobsChanged := make(chan struct{}, 1)
		cmd.Println(mutedStyle.Render("Watching for changes, press Ctrl+C to stop"))

		g.Go(func() error {
			defer close(jobsChanged)
			for change := range changes {
				ts := time.Now().In(application.Jobs.Location()).Format("15:04:05")
				cmd.Printf("%s %s changed\n", mutedStyle.Render(ts), strings.Join(change.Keys, ", "))
				if !slices.Contains(change.Keys, models.KeyJobs) {
					continue
				}
				select {
				case jobsChanged <- struct{}{}:
				default: // a summary is already pending
				}
			}
			return nil
		})

		g.Go(func() error {
			for range jobsChanged {
				summarize(ctx, cmd, application, refresh)
			}
			return nil
		})

		return g.Wait()
	},
}

// summarize prints the job total, recomputing statistics first when refresh is set.
// Writes of this process show up as another statistics change, never as a jobs change.
func summarize(ctx context.Context, cmd *cobra.Command, application *app.App, refresh bool) {
	stats, err := application.Jobs.GetStatistics(ctx)
	if refresh && err == nil {
		stats, err = application.Jobs.UpdateStatistics(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			cmd.PrintErrf("  could not read statistics: %v\n", err)
		}
		return
	}
	cmd.Printf("  %s %d tracked\n", labelStyle.Render("Jobs:"), stats.TotalApplications)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("refresh-stats", false, "Recompute statistics when jobs change")
}
