package app

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/khrees2412/applytrack/internal/config"
	"github.com/khrees2412/applytrack/internal/database"
	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/internal/migration"
	"github.com/khrees2412/applytrack/internal/settings"
)

// Options override what NewApp would otherwise read from the config file
type Options struct {
	ConfigPath string // empty means ~/.applytrack/config.yaml
	DBPath     string // overrides db_path
	Debug      bool   // forces debug logging
	Clock      func() time.Time
}

// App is the dependency container for the CLI application
type App struct {
	Config     *config.Config
	ConfigPath string
	KV         *kv.SQLiteStore
	Settings   *settings.Store
	Jobs       *jobstore.Store
	Migrator   *migration.Engine

	logOut io.Writer
}

// NewApp initializes and returns a new App instance
func NewApp(ctx context.Context, opts Options) (*App, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.GetConfigPath()
	}

	// Initialize config
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Debug {
		cfg.Log.Enabled, cfg.Log.Debug = true, true
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logOut := SetupLogs(cfg.Log)
	logger := log.Default()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		closeLog(logOut)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := kv.NewSQLiteStore(db, database.DriverName, kv.Options{PollInterval: cfg.WatchInterval, Logger: logger})

	settingsStore := settings.New(store, logger)
	jobs := jobstore.New(store, settingsStore, jobstore.Options{
		Clock:         opts.Clock,
		Location:      loc,
		TrendWeeks:    cfg.TrendWeeks,
		MaxNoteLength: cfg.MaxNoteLength,
		URLTemplate:   cfg.JobURLTemplate,
		Retries:       cfg.WriteRetries,
		Logger:        logger,
	})
	migrator := migration.New(store, jobs, migration.Options{
		Clock:       opts.Clock,
		Location:    loc,
		URLTemplate: cfg.JobURLTemplate,
		Logger:      logger,
	})

	logger.Logf("[DEBUG] opened %s with config %s", cfg.DBPath, opts.ConfigPath)
	return &App{
		Config:     cfg,
		ConfigPath: opts.ConfigPath,
		KV:         store,
		Settings:   settingsStore,
		Jobs:       jobs,
		Migrator:   migrator,
		logOut:     logOut,
	}, nil
}

// Startup runs the schema check before anything touches the job store.
// A failed migration leaves the data as it was and is reported in the result.
func (a *App) Startup(ctx context.Context) migration.Result {
	res := a.Migrator.CheckAndMigrate(ctx)
	switch {
	case res.Success && res.Migrated:
		n := 0
		if res.Details != nil {
			n = res.Details.SuccessCount
		}
		log.Printf("[INFO] applytrack updated, migrated %d job applications to the new version", n)
	case !res.Success:
		log.Printf("[ERROR] migration failed: %s", res.Error)
	}
	return res
}

// Ready reports whether job commands may run, i.e. the stored schema is current
func (a *App) Ready() error {
	switch a.Migrator.State() {
	case migration.StateMigrated, migration.StateFresh:
		return nil
	default:
		return ErrMigrationPending
	}
}

// Close closes all resources
func (a *App) Close() error {
	var err error
	if a.KV != nil {
		err = a.KV.Close()
	}
	closeLog(a.logOut)
	return err
}
