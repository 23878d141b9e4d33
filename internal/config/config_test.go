package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/applytrack/pkg/models"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, 12, cfg.TrendWeeks)
	assert.Equal(t, 1000, cfg.MaxNoteLength)
	assert.Equal(t, models.DefaultJobURLTemplate, cfg.JobURLTemplate)
	assert.Equal(t, 5, cfg.WriteRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchInterval)
	assert.True(t, cfg.Log.Enabled)
	assert.Equal(t, 10, cfg.Log.MaxSize)
	assert.True(t, strings.HasSuffix(cfg.DBPath, filepath.Join(".applytrack", "applytrack.db")))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `db_path: /tmp/jobs.db
timezone: UTC
trend_weeks: 4
watch_interval: 2s
log:
  debug: true
  file: /tmp/applytrack.log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/jobs.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.TrendWeeks)
	assert.Equal(t, 2*time.Second, cfg.WatchInterval)
	assert.True(t, cfg.Log.Debug)
	assert.True(t, cfg.Log.Enabled, "missing keys fall back to defaults")
	assert.Equal(t, "/tmp/applytrack.log", cfg.Log.File)
	assert.Equal(t, 1000, cfg.MaxNoteLength)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero trend weeks", "trend_weeks: 0\n"},
		{"url template without id", "job_url_template: https://example.com\n"},
		{"unknown timezone", "timezone: Mars/Olympus\n"},
		{"short watch interval", "watch_interval: 1ms\n"},
		{"negative backups", "log:\n  max_backups: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestSetAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, Set(path, "trend_weeks", "8"))
	require.NoError(t, Set(path, "log.debug", "true"))

	val, err := Get(path, "trend_weeks")
	require.NoError(t, err)
	assert.Equal(t, "8", val)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.TrendWeeks)
	assert.True(t, cfg.Log.Debug)

	err = Set(path, "openai_key", "sk-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")

	require.Error(t, Set(path, "trend_weeks", "abc"))
	require.Error(t, Set(path, "trend_weeks", "0"))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.TrendWeeks, "rejected values are not written")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "db_path")
	assert.Contains(t, keys, "log.file")
	assert.IsIncreasing(t, keys)
}
