package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/khrees2412/applytrack/pkg/models"
)

// Config holds the application configuration
type Config struct {
	DBPath         string        `mapstructure:"db_path" validate:"required"`
	Timezone       string        `mapstructure:"timezone" validate:"required"` // IANA name or Local
	TrendWeeks     int           `mapstructure:"trend_weeks" validate:"min=1,max=104"`
	MaxNoteLength  int           `mapstructure:"max_note_length" validate:"min=1,max=100000"`
	JobURLTemplate string        `mapstructure:"job_url_template" validate:"required,contains=%s"`
	WriteRetries   int           `mapstructure:"write_retries" validate:"min=1,max=100"`
	WatchInterval  time.Duration `mapstructure:"watch_interval" validate:"min=10ms"`
	Log            LogConfig     `mapstructure:"log"`
}

// LogConfig controls logging and the optional rotated log file
type LogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Debug      bool   `mapstructure:"debug"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size" validate:"min=0"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"min=0"` // days
	Compress   bool   `mapstructure:"compress"`
}

// Location returns the zone used for week boundaries and timestamp checks
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

var validate = validator.New()

// Load reads the configuration file at path, creating it with defaults if it doesn't exist.
// An empty path means GetConfigPath().
func Load(path string) (*Config, error) {
	v, err := open(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Set updates a configuration value and writes the file. Unknown keys and values
// that make the configuration invalid are rejected and nothing is written.
func Set(path, key, value string) error {
	v, err := open(path)
	if err != nil {
		return err
	}
	if !isKnownKey(key) {
		return fmt.Errorf("invalid key %q, must be one of: %v", key, Keys())
	}

	v.Set(key, value)
	if _, err := decode(v); err != nil {
		return err
	}
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get retrieves a configuration value
func Get(path, key string) (string, error) {
	v, err := open(path)
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// Keys lists the settable configuration keys
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".applytrack", "config.yaml")
}

func open(path string) (*viper.Viper, error) {
	if path == "" {
		path = GetConfigPath()
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create default config if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultConfig(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() map[string]any {
	homeDir, _ := os.UserHomeDir()
	return map[string]any{
		"db_path":          filepath.Join(homeDir, ".applytrack", "applytrack.db"),
		"timezone":         "Local",
		"trend_weeks":      12,
		"max_note_length":  1000,
		"job_url_template": models.DefaultJobURLTemplate,
		"write_retries":    5,
		"watch_interval":   "500ms",
		"log.enabled":      true,
		"log.debug":        false,
		"log.file":         "",
		"log.max_size":     10,
		"log.max_backups":  3,
		"log.max_age":      30,
		"log.compress":     false,
	}
}

func isKnownKey(key string) bool {
	_, ok := defaults()[key]
	return ok
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# Applytrack Configuration
# Database file, defaults to ~/.applytrack/applytrack.db
# db_path: /path/to/applytrack.db

# Zone used for weekly trends ("Local" or an IANA name like Europe/Berlin)
timezone: Local
trend_weeks: 12
max_note_length: 1000
job_url_template: "https://www.linkedin.com/jobs/view/%s"

# Attempts of a write that raced with another process
write_retries: 5
watch_interval: 500ms

log:
  enabled: true
  debug: false
  file: ""
  max_size: 10
  max_backups: 3
  max_age: 30
  compress: false
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}
