package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/applytrack/internal/app"
	"github.com/khrees2412/applytrack/internal/migration"
	"github.com/khrees2412/applytrack/pkg/models"
)

type cli struct {
	t      *testing.T
	config string
	db     string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("timezone: UTC\nlog:\n  enabled: false\n"), 0600))
	return &cli{t: t, config: cfg, db: filepath.Join(dir, "applytrack.db")}
}

// run executes one command line against the shared command tree
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", c.config, "--db", c.db}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	if current != nil {
		current.Close()
		current = nil
	}
	return buf.String(), err
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

// resetFlags restores flags changed by a previous run, commands are package globals
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestCLI_JobLifecycle(t *testing.T) {
	c := newCLI(t)

	out := c.ok("job", "add", "--id", "3812345678", "--title", "Backend Engineer", "--company", "Acme Inc", "--location", "Berlin")
	assert.Contains(t, out, "Job added: Backend Engineer at Acme Inc")

	out = c.ok("job", "add", "--id", "3812345678", "--salary", "90k")
	assert.Contains(t, out, "Job updated: Backend Engineer at Acme Inc")

	out = c.ok("job", "list")
	assert.Contains(t, out, "Backend Engineer at Acme Inc")
	assert.Contains(t, out, "3812345678")

	out = c.ok("status", "update", "3812345678", "--status", "interviewing")
	assert.Contains(t, out, "is now Interviewing")

	out = c.ok("note", "add", "3812345678", "Recruiter", "call", "on", "Friday")
	assert.Contains(t, out, "Note added (ID: note_")

	out = c.ok("job", "show", "3812345678")
	assert.Contains(t, out, "Recruiter call on Friday")
	assert.Contains(t, out, "90k")
	assert.Contains(t, out, "https://www.linkedin.com/jobs/view/3812345678")

	out = c.ok("status", "--filter", "interviewing")
	assert.Contains(t, out, "Backend Engineer at Acme Inc")

	out = c.ok("search", "ACME")
	assert.Contains(t, out, "Found 1 job(s)")

	out = c.ok("stats", "--refresh")
	assert.Contains(t, out, "Total Applications: 1")

	c.ok("settings", "set", "--blacklist", "acme inc")
	out = c.ok("job", "list")
	assert.Contains(t, out, "1 hidden by filters")
	assert.NotContains(t, out, "Backend Engineer")
	out = c.ok("job", "list", "--all")
	assert.Contains(t, out, "Backend Engineer")

	out = c.ok("job", "remove", "3812345678")
	assert.Contains(t, out, "removed")
	_, err := c.run("job", "show", "3812345678")
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestCLI_Errors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("job", "add")
	assert.ErrorIs(t, err, app.ErrInvalidArgument)

	_, err = c.run("job", "add", "--id", "12345", "--status", "ghosted")
	assert.ErrorContains(t, err, "unknown status")

	_, err = c.run("status", "update", "99999", "--status", "offer")
	assert.ErrorIs(t, err, app.ErrNotFound)

	_, err = c.run("note", "add", "99999", "hello")
	assert.ErrorIs(t, err, app.ErrNotFound)

	_, err = c.run("reset")
	assert.ErrorIs(t, err, app.ErrInvalidArgument)

	_, err = c.run("settings", "set", "--theme", "neon")
	assert.ErrorIs(t, err, app.ErrInvalidSettings)
}

func TestCLI_Reset(t *testing.T) {
	c := newCLI(t)
	c.ok("job", "add", "--id", "12345", "--title", "QA")
	c.ok("settings", "set", "--theme", "dark")

	out := c.ok("reset", "--yes")
	assert.Contains(t, out, "All data cleared")

	out = c.ok("job", "list")
	assert.Contains(t, out, "No jobs found")
	out = c.ok("settings", "show", "--json")
	var s models.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, models.ThemeDefault, s.Theme)
}

func TestCLI_MigrateImport(t *testing.T) {
	c := newCLI(t)
	c.ok("job", "list") // fresh install writes the schema version

	export := filepath.Join(t.TempDir(), "appliedJobIds.json")
	require.NoError(t, os.WriteFile(export, []byte(`{"12345678":1704067200000,"23456789":1704153600000,"abc":1704067200000}`), 0600))

	_, err := c.run("migrate", "import", export)
	assert.ErrorIs(t, err, migration.ErrAlreadyMigrated)

	out := c.ok("migrate", "import", export, "--force")
	assert.Contains(t, out, "Imported 3 legacy entries")
	assert.Contains(t, out, "Migrated 2 of 3 job applications")

	out = c.ok("migrate", "status", "--json")
	var st migration.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, models.CurrentSchemaVersion, st.CurrentVersion)
	assert.True(t, st.HasBackup)
	assert.False(t, st.NeedsMigration)

	out = c.ok("job", "list")
	assert.Contains(t, out, "12345678")
	assert.Contains(t, out, "23456789")

	_, err = c.run("migrate", "rollback")
	assert.ErrorIs(t, err, app.ErrInvalidArgument)
	out = c.ok("migrate", "rollback", "--yes")
	assert.Contains(t, out, "Legacy data restored")

	// any job command upgrades the restored data again
	out = c.ok("job", "list")
	assert.Contains(t, out, "2 job applications migrated")
	assert.Contains(t, out, "23456789")

	c.ok("migrate", "cleanup")
	out = c.ok("migrate", "run")
	assert.Contains(t, out, "Nothing to do")
}

func TestFormatBytes(t *testing.T) {
	tbl := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tbl {
		assert.Equal(t, tt.want, formatBytes(tt.n))
	}
}

func TestStatusStyle(t *testing.T) {
	s := models.DefaultSettings()
	assert.Equal(t, lipgloss.Color("#2a7745"), statusStyle(s, models.StatusOffer).GetForeground())
	assert.Equal(t, lipgloss.Color("7"), statusStyle(s, models.StatusViewed).GetForeground(), "no color configured")
	s.Display.ShowStatusColors = false
	assert.Equal(t, lipgloss.Color("7"), statusStyle(s, models.StatusOffer).GetForeground())

	st, err := parseStatus("withdrawn")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, st)
	_, err = parseStatus("")
	assert.Error(t, err)
}
