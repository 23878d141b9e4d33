// Package migration upgrades the v1 legacy job map to the current job collection,
// keeping a backup of the legacy data and rolling back when the upgrade fails.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/pkg/models"
)

var (
	// ErrNoBackup is returned by Rollback when no legacy backup exists
	ErrNoBackup = errors.New("no backup found for rollback")
	// ErrAlreadyMigrated is returned by ImportLegacy when the store already holds the current schema
	ErrAlreadyMigrated = errors.New("store is already on the current schema")

	errMigratedElsewhere = errors.New("schema version changed during migration")
)

// State of the engine in this process
type State string

const (
	StateUnmigrated State = "unmigrated"
	StateMigrating  State = "migrating"
	StateMigrated   State = "migrated"
	StateFailed     State = "failed"
	StateFresh      State = "fresh"
)

// Details counts the outcome of a migration
type Details struct {
	TotalJobs    int               `json:"totalJobs"`
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	Skipped      []ValidationError `json:"skipped,omitempty"`
	Repaired     []ValidationError `json:"repaired,omitempty"`
}

// Result is reported by CheckAndMigrate and MigrateLegacy instead of an error.
// Callers check Success.
type Result struct {
	Success  bool     `json:"success"`
	Migrated bool     `json:"migrated"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Details  *Details `json:"details,omitempty"`

	Err error `json:"-"`
}

// Status is a read-only view of the stored schema
type Status struct {
	CurrentVersion int  `json:"currentVersion"`
	TargetVersion  int  `json:"targetVersion"`
	NeedsMigration bool `json:"needsMigration"`
	HasLegacyData  bool `json:"hasLegacyData"`
	HasBackup      bool `json:"hasBackup"`
}

// Options tune an Engine
type Options struct {
	Clock       func() time.Time
	Location    *time.Location // legacy timestamps are checked for plausibility in this zone
	URLTemplate string
	Logger      log.L
}

// Engine runs the legacy upgrade over a kv store
type Engine struct {
	kv   kv.Store
	jobs *jobstore.Store
	opts Options
	log  log.L

	mu    sync.Mutex
	state State
}

// New makes an engine. The job store re-establishes defaults and statistics after the upgrade.
func New(kvs kv.Store, jobs *jobstore.Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.URLTemplate == "" {
		opts.URLTemplate = models.DefaultJobURLTemplate
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{kv: kvs, jobs: jobs, opts: opts, log: opts.Logger, state: StateUnmigrated}
}

// State returns the outcome of the last check in this process
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CheckAndMigrate upgrades legacy data if the stored schema is not current.
// It never returns an error, failures are reported in the result.
func (e *Engine) CheckAndMigrate(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.kv.Get(ctx, models.KeySchemaVersion, models.KeyLegacyJobs)
	if err != nil {
		e.state = StateFailed
		e.log.Logf("[ERROR] migration check failed: %v", err)
		return failure(fmt.Errorf("read schema: %w", err))
	}

	if version, ok := schemaVersion(res); ok && version == models.CurrentSchemaVersion {
		e.state = StateMigrated
		return Result{Success: true, Message: "already on latest schema version"}
	}

	var legacy models.LegacyJobMap
	if entry, ok := res[models.KeyLegacyJobs]; ok {
		if err := entry.Decode(&legacy); err != nil {
			e.state = StateFailed
			e.log.Logf("[ERROR] legacy data is unreadable: %v", err)
			return failure(fmt.Errorf("decode legacy data: %w", err))
		}
	}

	if len(legacy) == 0 {
		if err := e.jobs.Initialize(ctx); err != nil {
			e.state = StateFailed
			return failure(err)
		}
		e.state = StateFresh
		return Result{Success: true, Message: "fresh install, no migration needed"}
	}

	e.log.Logf("[INFO] migrating %d legacy jobs to schema v%d", len(legacy), models.CurrentSchemaVersion)
	return e.migrate(ctx, legacy, res[models.KeySchemaVersion].Version)
}

// MigrateLegacy upgrades the given legacy map unconditionally, rolling back on failure
func (e *Engine) MigrateLegacy(ctx context.Context, legacy models.LegacyJobMap) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.kv.Get(ctx, models.KeySchemaVersion)
	if err != nil {
		e.state = StateFailed
		return failure(fmt.Errorf("read schema: %w", err))
	}
	return e.migrate(ctx, legacy, res[models.KeySchemaVersion].Version)
}

// migrate upgrades legacy data if the schema version key is still at the version it was read at,
// zero meaning absent
func (e *Engine) migrate(ctx context.Context, legacy models.LegacyJobMap, seen int64) Result {
	e.state = StateMigrating

	details, err := e.apply(ctx, legacy, seen)
	if errors.Is(err, errMigratedElsewhere) {
		e.state = StateMigrated
		e.log.Logf("[INFO] schema upgraded by another process, nothing written")
		return Result{Success: true, Message: "already migrated by another process"}
	}
	if err != nil {
		e.state = StateFailed
		e.log.Logf("[ERROR] migration failed: %v", err)
		if rbErr := e.rollback(ctx); rbErr != nil {
			e.log.Logf("[ERROR] rollback failed: %v", rbErr)
		} else {
			e.log.Logf("[WARN] legacy data restored from backup")
		}
		return failure(err)
	}

	e.state = StateMigrated
	e.log.Logf("[INFO] migration complete, migrated %d jobs, %d errors", details.SuccessCount, details.ErrorCount)
	return Result{
		Success:  true,
		Migrated: true,
		Message:  fmt.Sprintf("successfully migrated %d jobs", details.SuccessCount),
		Details:  &details,
	}
}

// apply runs the destructive steps. The backup is written before anything else and the
// migrated collection only lands if no other process wrote a schema version meanwhile.
func (e *Engine) apply(ctx context.Context, legacy models.LegacyJobMap, seen int64) (Details, error) {
	now := e.opts.Clock()

	backup := models.LegacyBackup{Data: legacy, Timestamp: now.UnixMilli()}
	if err := e.kv.Set(ctx, map[string]any{models.KeyLegacyBackup: backup}); err != nil {
		return Details{}, fmt.Errorf("backup legacy data: %w", err)
	}

	jobs, details := Transform(legacy, now, e.opts.Location, e.opts.URLTemplate)
	for _, v := range details.Skipped {
		e.log.Logf("[WARN] skipped %v", v)
	}
	for _, v := range details.Repaired {
		e.log.Logf("[WARN] repaired %v", v)
	}

	err := e.kv.SetIf(ctx, kv.Precondition{Key: models.KeySchemaVersion, Version: seen}, map[string]any{
		models.KeyJobs:          jobs,
		models.KeySchemaVersion: models.CurrentSchemaVersion,
	})
	if errors.Is(err, kv.ErrVersionConflict) {
		return Details{}, errMigratedElsewhere
	}
	if err != nil {
		return Details{}, fmt.Errorf("save migrated jobs: %w", err)
	}

	if err := e.jobs.Initialize(ctx); err != nil {
		return Details{}, fmt.Errorf("initialize defaults: %w", err)
	}
	if _, err := e.jobs.UpdateStatistics(ctx); err != nil {
		return Details{}, fmt.Errorf("update statistics: %w", err)
	}

	if err := e.kv.Remove(ctx, models.KeyLegacyJobs); err != nil {
		return Details{}, fmt.Errorf("remove legacy data: %w", err)
	}
	return details, nil
}

// Rollback restores the legacy map from the backup and removes every current-schema key.
// Rolling back twice is harmless, the backup is kept until CleanupBackup.
func (e *Engine) Rollback(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.rollback(ctx); err != nil {
		return err
	}
	e.state = StateUnmigrated
	e.log.Logf("[INFO] rollback complete")
	return nil
}

func (e *Engine) rollback(ctx context.Context) error {
	res, err := e.kv.Get(ctx, models.KeyLegacyBackup)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	entry, ok := res[models.KeyLegacyBackup]
	if !ok {
		return ErrNoBackup
	}
	var backup models.LegacyBackup
	if err := entry.Decode(&backup); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if backup.Data == nil {
		backup.Data = models.LegacyJobMap{}
	}

	err = e.kv.SetAndRemove(ctx, map[string]any{models.KeyLegacyJobs: backup.Data},
		models.KeyJobs, models.KeySchemaVersion, models.KeySettings, models.KeyStatistics)
	if err != nil {
		return fmt.Errorf("restore legacy data: %w", err)
	}
	return nil
}

// Status reports the stored schema version and which legacy keys exist
func (e *Engine) Status(ctx context.Context) (Status, error) {
	res, err := e.kv.Get(ctx, models.KeySchemaVersion, models.KeyLegacyJobs, models.KeyLegacyBackup)
	if err != nil {
		return Status{}, fmt.Errorf("read schema: %w", err)
	}
	version, hasVersion := schemaVersion(res)
	_, hasLegacy := res[models.KeyLegacyJobs]
	_, hasBackup := res[models.KeyLegacyBackup]

	st := Status{
		CurrentVersion: 1,
		TargetVersion:  models.CurrentSchemaVersion,
		NeedsMigration: !hasVersion && hasLegacy,
		HasLegacyData:  hasLegacy,
		HasBackup:      hasBackup,
	}
	if hasVersion {
		st.CurrentVersion = version
	}
	return st, nil
}

// CleanupBackup removes the legacy backup. It can't be undone.
func (e *Engine) CleanupBackup(ctx context.Context) error {
	if err := e.kv.Remove(ctx, models.KeyLegacyBackup); err != nil {
		return fmt.Errorf("remove backup: %w", err)
	}
	e.log.Logf("[INFO] legacy backup removed")
	return nil
}

// ImportLegacy stores a v1 export ({"<job id>": <millis>, ...}) as the legacy map, so the next
// CheckAndMigrate upgrades it. Stores already on a schema version are refused.
func (e *Engine) ImportLegacy(ctx context.Context, r io.Reader) (int, error) {
	var legacy models.LegacyJobMap
	if err := json.NewDecoder(r).Decode(&legacy); err != nil {
		return 0, fmt.Errorf("decode legacy export: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.kv.Get(ctx, models.KeySchemaVersion)
	if err != nil {
		return 0, fmt.Errorf("read schema: %w", err)
	}
	if _, ok := schemaVersion(res); ok {
		return 0, ErrAlreadyMigrated
	}
	if err := e.kv.Set(ctx, map[string]any{models.KeyLegacyJobs: legacy}); err != nil {
		return 0, fmt.Errorf("store legacy data: %w", err)
	}
	e.state = StateUnmigrated
	e.log.Logf("[INFO] imported %d legacy entries", len(legacy))
	return len(legacy), nil
}

func schemaVersion(res map[string]kv.Entry) (int, bool) {
	entry, ok := res[models.KeySchemaVersion]
	if !ok {
		return 0, false
	}
	var v int
	if err := entry.Decode(&v); err != nil {
		return 0, false
	}
	return v, true
}

func failure(err error) Result {
	return Result{Error: err.Error(), Err: err}
}
