package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/khrees2412/applytrack/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// statusStyle renders a status in its configured color, falling back to the value style
func statusStyle(s models.Settings, status models.Status) lipgloss.Style {
	if !s.Display.ShowStatusColors {
		return valueStyle
	}
	if c, ok := s.StatusColors[status]; ok && c != "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
	}
	return valueStyle
}

// titleCase converts a string to title case using proper locale-aware capitalization
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func statusLabel(status models.Status) string {
	return titleCase(string(status))
}

func formatDate(millis int64, loc *time.Location) string {
	if millis == 0 {
		return "-"
	}
	return time.UnixMilli(millis).In(loc).Format("Jan 2, 2006")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func parseStatus(s string) (models.Status, error) {
	st := models.Status(s)
	if !st.Known() {
		return "", fmt.Errorf("unknown status %q, must be one of: %v", s, models.KnownStatuses())
	}
	return st, nil
}
