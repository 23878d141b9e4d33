package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes on a job",
}

var addNoteCmd = &cobra.Command{
	Use:     "add <job-id> <text>...",
	Short:   "Add a note to a job",
	Example: `  applytrack note add 3812345678 "Recruiter call on Friday"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		note, err := application.Jobs.AddNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return notFound(err, args[0])
		}
		cmd.Printf("✓ Note added (ID: %s)\n", note.ID)
		return nil
	},
}

var removeNoteCmd = &cobra.Command{
	Use:     "remove <job-id> <note-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a note from a job",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		if err := application.Jobs.DeleteNote(cmd.Context(), args[0], args[1]); err != nil {
			return notFound(err, args[0])
		}
		cmd.Printf("✓ Note %s removed\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(addNoteCmd)
	noteCmd.AddCommand(removeNoteCmd)
}
