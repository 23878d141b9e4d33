package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/internal/settings"
	"github.com/khrees2412/applytrack/pkg/models"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse tracked jobs interactively",
	Long:  "Browse tracked jobs, change their status and add notes from an interactive prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		return runTUI(cmd, application, bufio.NewReader(cmd.InOrStdin()))
	},
}

func runTUI(cmd *cobra.Command, application *app.App, reader *bufio.Reader) error {
	ctx := cmd.Context()
	query := ""

	for {
		jobs, err := application.Jobs.SearchJobs(ctx, query)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		prefs, err := application.Settings.Get(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		visible := jobs[:0:0]
		for _, j := range jobs {
			if !settings.Hidden(prefs, j) {
				visible = append(visible, j)
			}
		}

		cmd.Println(titleStyle.Render("Job Browser"))
		if query != "" {
			cmd.Printf("Filter: %s\n", query)
		}
		cmd.Println("Enter a job number to view it, '/text' to filter, '/' to clear or 'q' to quit")
		cmd.Println()
		if len(visible) == 0 {
			cmd.Println(mutedStyle.Render("No jobs to show"))
		}
		for i, j := range visible {
			cmd.Printf("%d. %s %s\n", i+1, describe(j), statusStyle(prefs, j.Status).Render("["+statusLabel(j.Status)+"]"))
		}

		input, err := prompt(cmd, reader)
		if err != nil {
			return nil
		}
		switch {
		case input == "q" || input == "Q":
			return nil
		case strings.HasPrefix(input, "/"):
			query = strings.TrimSpace(input[1:])
			continue
		}

		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(visible) {
			cmd.Println("Invalid selection")
			continue
		}
		if err := jobDetailsLoop(cmd, application, visible[n-1].ID, reader); err != nil {
			return err
		}
	}
}

func jobDetailsLoop(cmd *cobra.Command, application *app.App, id string, reader *bufio.Reader) error {
	ctx := cmd.Context()
	for {
		job, ok, err := application.Jobs.GetJob(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch job: %w", err)
		}
		if !ok {
			cmd.Println("This job is no longer tracked")
			return nil
		}
		prefs, err := application.Settings.Get(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}

		cmd.Println("\n" + strings.Repeat("=", 60))
		printJobDetails(cmd, job, prefs, application.Jobs.Location())

		cmd.Println("\nOptions:")
		cmd.Println("  [s] Change status")
		cmd.Println("  [n] Add a note")
		cmd.Println("  [b] Back to list")

		choice, err := prompt(cmd, reader)
		if err != nil {
			return nil
		}
		switch strings.ToLower(choice) {
		case "s":
			for i, st := range models.KnownStatuses() {
				cmd.Printf("  %d. %s\n", i+1, statusLabel(st))
			}
			in, err := prompt(cmd, reader)
			if err != nil {
				return nil
			}
			statuses := models.KnownStatuses()
			k, err := strconv.Atoi(in)
			if err != nil || k < 1 || k > len(statuses) {
				cmd.Println("Invalid selection")
				continue
			}
			if err := application.Jobs.UpdateStatus(ctx, id, statuses[k-1]); err != nil {
				cmd.Printf("Error: %v\n", err)
				continue
			}
			cmd.Printf("✓ Status changed to %s\n", statusLabel(statuses[k-1]))
		case "n":
			cmd.Print("Note: ")
			text, err := reader.ReadString('\n')
			if err != nil && text == "" {
				return nil
			}
			if _, err := application.Jobs.AddNote(ctx, id, strings.TrimSpace(text)); err != nil {
				cmd.Printf("Error: %v\n", err)
				continue
			}
			cmd.Println("✓ Note added")
		case "b":
			return nil
		default:
			cmd.Println("Invalid choice")
		}
	}
}

// prompt reads one trimmed line, io.EOF ends the session
func prompt(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	cmd.Print("\n> ")
	line, err := reader.ReadString('\n')
	if err == io.EOF && line != "" {
		return strings.TrimSpace(line), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
