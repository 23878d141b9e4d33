package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/pkg/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage tracking preferences",
	Long:  "View and update tracking, display, filter and notification preferences",
}

var showSettingsCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		s, err := application.Settings.Get(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, s)
		}

		cmd.Println(titleStyle.Render("Settings"))
		cmd.Printf("%s %s\n", labelStyle.Render("Theme:"), s.Theme)

		cmd.Printf("\n%s\n", labelStyle.Render("Tracking"))
		for _, c := range []struct {
			name string
			ch   models.Channel
		}{{"applied", s.Tracking.Applied}, {"viewed", s.Tracking.Viewed}, {"saved", s.Tracking.Saved}} {
			cmd.Printf("  %-8s %-3s %s\n", c.name, yesNo(c.ch.Enabled), c.ch.Color)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Display"))
		cmd.Printf("  badge: %s  border: %s  status colors: %s  compact: %s\n",
			yesNo(s.Display.ShowBadge), yesNo(s.Display.ShowBorder), yesNo(s.Display.ShowStatusColors), yesNo(s.Display.CompactMode))

		cmd.Printf("\n%s\n", labelStyle.Render("Status Colors"))
		for _, st := range models.KnownStatuses() {
			if c, ok := s.StatusColors[st]; ok {
				cmd.Printf("  %-14s %s\n", statusStyle(s, st).Render(statusLabel(st)), c)
			}
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Notifications"))
		cmd.Printf("  enabled: %s  remind after: %d days\n", yesNo(s.Notifications.Enabled), s.Notifications.ReminderDays)

		cmd.Printf("\n%s\n", labelStyle.Render("Filters"))
		cmd.Printf("  hide applied: %s  hide viewed: %s  hide saved: %s\n",
			yesNo(s.Filters.HideApplied), yesNo(s.Filters.HideViewed), yesNo(s.Filters.HideSaved))
		cmd.Printf("  excluded keywords: %s\n", listOrNone(s.Filters.ExcludeKeywords))
		cmd.Printf("  company blacklist: %s\n", listOrNone(s.CompanyBlacklist))
		return nil
	},
}

var setSettingsCmd = &cobra.Command{
	Use:   "set",
	Short: "Update preferences",
	Long:  "Update preferences. Only the flags you pass are changed.",
	Example: `  applytrack settings set --theme dark
  applytrack settings set --hide-applied --exclude-keyword intern --exclude-keyword unpaid
  applytrack settings set --blacklist "Acme Inc" --status-color offer=#00ff00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		current, err := application.Settings.Get(cmd.Context())
		if err != nil {
			return err
		}
		patch, err := settingsPatch(cmd, current)
		if err != nil {
			return err
		}

		if _, err := application.Settings.Update(cmd.Context(), patch); err != nil {
			if errors.Is(err, app.ErrInvalidSettings) {
				return fmt.Errorf("settings not saved: %w", err)
			}
			return err
		}
		cmd.Println("✓ Settings updated")
		return nil
	},
}

var resetSettingsCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := readyApp(cmd)
		if err != nil {
			return err
		}
		if err := application.Settings.Reset(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("✓ Settings restored to defaults")
		return nil
	},
}

// settingsPatch turns the changed flags into a patch. Sections are replaced whole,
// so each touched section starts from its current value.
func settingsPatch(cmd *cobra.Command, current models.Settings) (models.SettingsPatch, error) {
	var patch models.SettingsPatch
	flags := cmd.Flags()

	if flags.Changed("theme") {
		theme, _ := flags.GetString("theme")
		patch.Theme = &theme
	}

	if flags.Changed("track-viewed") || flags.Changed("track-saved") {
		tracking := current.Tracking
		if flags.Changed("track-viewed") {
			tracking.Viewed.Enabled, _ = flags.GetBool("track-viewed")
		}
		if flags.Changed("track-saved") {
			tracking.Saved.Enabled, _ = flags.GetBool("track-saved")
		}
		patch.Tracking = &tracking
	}

	if flags.Changed("compact") || flags.Changed("status-colors") {
		display := current.Display
		if flags.Changed("compact") {
			display.CompactMode, _ = flags.GetBool("compact")
		}
		if flags.Changed("status-colors") {
			display.ShowStatusColors, _ = flags.GetBool("status-colors")
		}
		patch.Display = &display
	}

	if flags.Changed("status-color") {
		pairs, _ := flags.GetStringToString("status-color")
		colors := make(map[models.Status]string, len(current.StatusColors)+len(pairs))
		for k, v := range current.StatusColors {
			colors[k] = v
		}
		for k, v := range pairs {
			st, err := parseStatus(k)
			if err != nil {
				return patch, err
			}
			colors[st] = v
		}
		patch.StatusColors = colors
	}

	if flags.Changed("notifications") || flags.Changed("reminder-days") {
		n := current.Notifications
		if flags.Changed("notifications") {
			n.Enabled, _ = flags.GetBool("notifications")
		}
		if flags.Changed("reminder-days") {
			n.ReminderDays, _ = flags.GetInt("reminder-days")
		}
		patch.Notifications = &n
	}

	filterFlags := []string{"hide-applied", "hide-viewed", "hide-saved", "exclude-keyword", "clear-keywords"}
	if anyChanged(cmd, filterFlags...) {
		f := current.Filters
		f.ExcludeKeywords = append([]string{}, current.Filters.ExcludeKeywords...)
		if flags.Changed("hide-applied") {
			f.HideApplied, _ = flags.GetBool("hide-applied")
		}
		if flags.Changed("hide-viewed") {
			f.HideViewed, _ = flags.GetBool("hide-viewed")
		}
		if flags.Changed("hide-saved") {
			f.HideSaved, _ = flags.GetBool("hide-saved")
		}
		if wipe, _ := flags.GetBool("clear-keywords"); wipe {
			f.ExcludeKeywords = []string{}
		}
		kws, _ := flags.GetStringSlice("exclude-keyword")
		f.ExcludeKeywords = append(f.ExcludeKeywords, kws...)
		patch.Filters = &f
	}

	if anyChanged(cmd, "blacklist", "unblacklist") {
		add, _ := flags.GetStringSlice("blacklist")
		drop, _ := flags.GetStringSlice("unblacklist")
		list := make([]string, 0, len(current.CompanyBlacklist)+len(add))
		for _, c := range current.CompanyBlacklist {
			if !containsFold(drop, c) {
				list = append(list, c)
			}
		}
		for _, c := range add {
			if !containsFold(list, c) {
				list = append(list, c)
			}
		}
		patch.CompanyBlacklist = list
	}

	return patch, nil
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func listOrNone(list []string) string {
	if len(list) == 0 {
		return mutedStyle.Render("none")
	}
	return strings.Join(list, ", ")
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(showSettingsCmd)
	settingsCmd.AddCommand(setSettingsCmd)
	settingsCmd.AddCommand(resetSettingsCmd)

	showSettingsCmd.Flags().Bool("json", false, "Print settings as JSON")

	f := setSettingsCmd.Flags()
	f.String("theme", "", "Theme: default, dark, professional or custom")
	f.Bool("track-viewed", false, "Track viewed postings")
	f.Bool("track-saved", false, "Track saved postings")
	f.Bool("compact", false, "Compact display")
	f.Bool("status-colors", true, "Color statuses in listings")
	f.StringToString("status-color", nil, "Status color as status=#rrggbb, repeatable")
	f.Bool("notifications", false, "Enable follow-up reminders")
	f.Int("reminder-days", 7, "Days before a follow-up reminder")
	f.Bool("hide-applied", false, "Hide applied jobs from listings")
	f.Bool("hide-viewed", false, "Hide viewed jobs from listings")
	f.Bool("hide-saved", false, "Hide saved jobs from listings")
	f.StringSlice("exclude-keyword", nil, "Hide jobs whose title contains this keyword, repeatable")
	f.Bool("clear-keywords", false, "Remove all excluded keywords first")
	f.StringSlice("blacklist", nil, "Hide jobs from this company, repeatable")
	f.StringSlice("unblacklist", nil, "Remove a company from the blacklist, repeatable")
}
