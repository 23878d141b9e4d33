package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>...",
	Short: "Search tracked jobs",
	Long:  "Search tracked jobs by title, company or location, ignoring case",
	Example: `  applytrack search backend
  applytrack search "acme inc"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := application.Jobs.SearchJobs(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("search jobs: %w", err)
		}
		if len(jobs) == 0 {
			cmd.Printf("No tracked jobs match '%s'\n", query)
			return nil
		}
		prefs, err := application.Settings.Get(cmd.Context())
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}

		cmd.Println(titleStyle.Render(fmt.Sprintf("Found %d job(s)", len(jobs))))
		for i, j := range jobs {
			if limit > 0 && i == limit {
				cmd.Println(mutedStyle.Render(fmt.Sprintf("\n... and %d more", len(jobs)-limit)))
				break
			}
			printJobSummary(cmd, i+1, j, prefs, application.Jobs.Location())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 20, "Maximum number of results to show")
}
