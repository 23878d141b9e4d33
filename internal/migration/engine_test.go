package migration

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/applytrack/internal/database"
	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/internal/settings"
	"github.com/khrees2412/applytrack/pkg/models"
)

const legacyExample = `{"12345678":1704067200000,"987":1704067200000}`

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// failingStore fails writes that touch failKey and a Remove of failKey alone
type failingStore struct {
	kv.Store
	failKey string
}

var errInjected = errors.New("injected failure")

func (f *failingStore) Set(ctx context.Context, values map[string]any) error {
	if _, ok := values[f.failKey]; ok {
		return errInjected
	}
	return f.Store.Set(ctx, values)
}

func (f *failingStore) SetIf(ctx context.Context, cond kv.Precondition, values map[string]any) error {
	if _, ok := values[f.failKey]; ok {
		return errInjected
	}
	return f.Store.SetIf(ctx, cond, values)
}

func (f *failingStore) SetAndRemove(ctx context.Context, values map[string]any, remove ...string) error {
	if _, ok := values[f.failKey]; ok {
		return errInjected
	}
	return f.Store.SetAndRemove(ctx, values, remove...)
}

func (f *failingStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 1 && keys[0] == f.failKey {
		return errInjected
	}
	return f.Store.Remove(ctx, keys...)
}

// hookStore runs afterGet once, right after the first Get returns
type hookStore struct {
	kv.Store
	once     sync.Once
	afterGet func()
}

func (h *hookStore) Get(ctx context.Context, keys ...string) (map[string]kv.Entry, error) {
	res, err := h.Store.Get(ctx, keys...)
	h.once.Do(h.afterGet)
	return res, err
}

func newEngine(t *testing.T, wrap func(kv.Store) kv.Store) (*Engine, kv.Store) {
	t.Helper()
	return openEngine(t, filepath.Join(t.TempDir(), "migrate.db"), wrap)
}

func openEngine(t *testing.T, dbPath string, wrap func(kv.Store) kv.Store) (*Engine, kv.Store) {
	t.Helper()
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	base := kv.NewSQLiteStore(db, database.DriverName, kv.Options{Logger: log.NoOp})
	t.Cleanup(func() { base.Close() })

	var kvs kv.Store = base
	if wrap != nil {
		kvs = wrap(base)
	}
	clock := func() time.Time { return testNow }
	jobs := jobstore.New(kvs, settings.New(kvs, log.NoOp), jobstore.Options{Clock: clock, Location: time.UTC, Logger: log.NoOp})
	return New(kvs, jobs, Options{Clock: clock, Location: time.UTC, Logger: log.NoOp}), base
}

func seedLegacy(t *testing.T, kvs kv.Store, raw string) {
	t.Helper()
	require.NoError(t, kvs.Set(context.Background(), map[string]any{models.KeyLegacyJobs: json.RawMessage(raw)}))
}

func TestCheckAndMigrate_RoundTrip(t *testing.T) {
	engine, kvs := newEngine(t, nil)
	ctx := context.Background()
	seedLegacy(t, kvs, legacyExample)

	res := engine.CheckAndMigrate(ctx)
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Migrated)
	require.NotNil(t, res.Details)
	assert.Equal(t, 2, res.Details.TotalJobs)
	assert.Equal(t, 1, res.Details.SuccessCount)
	assert.Equal(t, 1, res.Details.ErrorCount)
	assert.Equal(t, []ValidationError{{ID: "987", Reason: "invalid job id"}}, res.Details.Skipped)
	assert.Equal(t, StateMigrated, engine.State())

	stored, err := kvs.Get(ctx, models.KeyJobs, models.KeySchemaVersion, models.KeyLegacyJobs,
		models.KeyLegacyBackup, models.KeySettings, models.KeyStatistics)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyLegacyJobs, "legacy key removed")
	assert.Contains(t, stored, models.KeySettings)

	var jobs map[string]models.JobRecord
	require.NoError(t, stored[models.KeyJobs].Decode(&jobs))
	require.Len(t, jobs, 1)
	job := jobs["12345678"]
	assert.Equal(t, models.StatusApplied, job.Status)
	assert.Equal(t, int64(1704067200000), job.DateApplied)
	assert.Equal(t, int64(1704067200000), job.DateAdded)
	assert.Equal(t, []models.StatusChange{{Status: models.StatusApplied, Timestamp: 1704067200000}}, job.StatusHistory)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/12345678", job.URL)

	var version int
	require.NoError(t, stored[models.KeySchemaVersion].Decode(&version))
	assert.Equal(t, models.CurrentSchemaVersion, version)

	var backup struct {
		Data      json.RawMessage `json:"data"`
		Timestamp int64           `json:"timestamp"`
	}
	require.NoError(t, stored[models.KeyLegacyBackup].Decode(&backup))
	assert.JSONEq(t, legacyExample, string(backup.Data), "backup equals the legacy map")
	assert.Equal(t, testNow.UnixMilli(), backup.Timestamp)

	var stats models.Statistics
	require.NoError(t, stored[models.KeyStatistics].Decode(&stats))
	assert.Equal(t, 1, stats.TotalApplications)
	assert.Equal(t, 1, stats.StatusBreakdown[models.StatusApplied])
}

func TestRollback(t *testing.T) {
	engine, kvs := newEngine(t, nil)
	ctx := context.Background()
	seedLegacy(t, kvs, legacyExample)

	require.True(t, engine.CheckAndMigrate(ctx).Success)
	require.NoError(t, engine.Rollback(ctx))
	assert.Equal(t, StateUnmigrated, engine.State())

	stored, err := kvs.Get(ctx, models.KeyJobs, models.KeySchemaVersion, models.KeySettings,
		models.KeyStatistics, models.KeyLegacyJobs, models.KeyLegacyBackup)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyJobs)
	assert.NotContains(t, stored, models.KeySchemaVersion)
	assert.NotContains(t, stored, models.KeySettings)
	assert.NotContains(t, stored, models.KeyStatistics)
	assert.Contains(t, stored, models.KeyLegacyBackup, "backup kept until cleanup")
	assert.JSONEq(t, legacyExample, string(stored[models.KeyLegacyJobs].Value))

	require.NoError(t, engine.Rollback(ctx), "second rollback is tolerated")

	st, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{CurrentVersion: 1, TargetVersion: models.CurrentSchemaVersion,
		NeedsMigration: true, HasLegacyData: true, HasBackup: true}, st)

	// the restored data migrates again
	res := engine.CheckAndMigrate(ctx)
	require.True(t, res.Success)
	assert.True(t, res.Migrated)
}

func TestRollback_NoBackup(t *testing.T) {
	engine, _ := newEngine(t, nil)
	assert.ErrorIs(t, engine.Rollback(context.Background()), ErrNoBackup)
}

func TestCheckAndMigrate_CurrentSchemaIsNoop(t *testing.T) {
	engine, kvs := newEngine(t, nil)
	ctx := context.Background()

	require.NoError(t, kvs.Set(ctx, map[string]any{
		models.KeySchemaVersion: models.CurrentSchemaVersion,
		models.KeyLegacyJobs:    json.RawMessage(legacyExample),
		models.KeyJobs:          map[string]models.JobRecord{},
	}))
	keys := []string{models.KeySchemaVersion, models.KeyLegacyJobs, models.KeyJobs, models.KeyLegacyBackup,
		models.KeySettings, models.KeyStatistics}
	before, err := kvs.Get(ctx, keys...)
	require.NoError(t, err)

	res := engine.CheckAndMigrate(ctx)
	assert.Equal(t, Result{Success: true, Migrated: false, Message: "already on latest schema version"}, res)
	assert.Equal(t, StateMigrated, engine.State())

	after, err := kvs.Get(ctx, keys...)
	require.NoError(t, err)
	assert.Equal(t, before, after, "no key touched")
}

func TestCheckAndMigrate_Fresh(t *testing.T) {
	tests := []struct {
		name   string
		legacy string
	}{
		{"no legacy key", ""},
		{"empty legacy map", `{}`},
		{"null legacy map", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, kvs := newEngine(t, nil)
			ctx := context.Background()
			if tt.legacy != "" {
				seedLegacy(t, kvs, tt.legacy)
			}

			res := engine.CheckAndMigrate(ctx)
			assert.True(t, res.Success)
			assert.False(t, res.Migrated)
			assert.Equal(t, StateFresh, engine.State())

			stored, err := kvs.Get(ctx, models.KeySchemaVersion, models.KeySettings, models.KeyLegacyBackup)
			require.NoError(t, err)
			assert.Contains(t, stored, models.KeySchemaVersion)
			assert.Contains(t, stored, models.KeySettings)
			assert.NotContains(t, stored, models.KeyLegacyBackup)
		})
	}
}

func TestCheckAndMigrate_UnreadableLegacy(t *testing.T) {
	engine, kvs := newEngine(t, nil)
	seedLegacy(t, kvs, `[1,2,3]`)

	res := engine.CheckAndMigrate(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "decode legacy data")
	assert.Equal(t, StateFailed, engine.State())
}

func TestCheckAndMigrate_FailureRollsBack(t *testing.T) {
	engine, kvs := newEngine(t, func(s kv.Store) kv.Store {
		return &failingStore{Store: s, failKey: models.KeyLegacyJobs}
	})
	ctx := context.Background()
	// seed through the base store, the wrapper refuses writes of the legacy key
	seedLegacy(t, kvs, legacyExample)

	res := engine.CheckAndMigrate(ctx)
	assert.False(t, res.Success)
	assert.False(t, res.Migrated)
	assert.ErrorIs(t, res.Err, errInjected)
	assert.Contains(t, res.Error, "remove legacy data")
	assert.Equal(t, StateFailed, engine.State())

	// restoring the legacy key also fails in this wrapper, so the v2 keys stay
	// and the legacy key is still intact since it was never removed
	stored, err := kvs.Get(ctx, models.KeyLegacyJobs, models.KeyLegacyBackup)
	require.NoError(t, err)
	assert.JSONEq(t, legacyExample, string(stored[models.KeyLegacyJobs].Value))
	assert.Contains(t, stored, models.KeyLegacyBackup)
}

func TestCheckAndMigrate_FailureAfterWriteIsRolledBack(t *testing.T) {
	engine, kvs := newEngine(t, func(s kv.Store) kv.Store {
		return &failingStore{Store: s, failKey: models.KeyStatistics}
	})
	ctx := context.Background()
	seedLegacy(t, kvs, legacyExample)

	res := engine.CheckAndMigrate(ctx)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "update statistics")

	stored, err := kvs.Get(ctx, models.KeyJobs, models.KeySchemaVersion, models.KeySettings,
		models.KeyStatistics, models.KeyLegacyJobs, models.KeyLegacyBackup)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyJobs, "written jobs removed by rollback")
	assert.NotContains(t, stored, models.KeySchemaVersion)
	assert.NotContains(t, stored, models.KeySettings)
	assert.JSONEq(t, legacyExample, string(stored[models.KeyLegacyJobs].Value))
	assert.Contains(t, stored, models.KeyLegacyBackup)
}

func TestCheckAndMigrate_BackupFailureLeavesLegacyUntouched(t *testing.T) {
	engine, kvs := newEngine(t, func(s kv.Store) kv.Store {
		return &failingStore{Store: s, failKey: models.KeyLegacyBackup}
	})
	ctx := context.Background()
	seedLegacy(t, kvs, legacyExample)

	res := engine.CheckAndMigrate(ctx)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "backup legacy data")

	stored, err := kvs.Get(ctx, models.KeyJobs, models.KeyLegacyJobs)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyJobs, "nothing written before the backup")
	assert.JSONEq(t, legacyExample, string(stored[models.KeyLegacyJobs].Value))
}

func TestCheckAndMigrate_ConcurrentStartups(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()
	first, kvs := openEngine(t, dbPath, nil)
	seedLegacy(t, kvs, legacyExample)

	// the first process migrates and saves a job between the second one's read and write
	var firstRes Result
	second, _ := openEngine(t, dbPath, func(s kv.Store) kv.Store {
		return &hookStore{Store: s, afterGet: func() {
			firstRes = first.CheckAndMigrate(ctx)
			title := "Data Engineer"
			_, err := first.jobs.SaveJob(ctx, models.JobPatch{ID: "55555555", Title: &title})
			require.NoError(t, err)
		}}
	})

	res := second.CheckAndMigrate(ctx)
	require.True(t, firstRes.Success, firstRes.Error)
	assert.True(t, firstRes.Migrated)
	assert.Equal(t, Result{Success: true, Message: "already migrated by another process"}, res)
	assert.Equal(t, StateMigrated, second.State())

	jobs, err := first.jobs.GetAllJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Contains(t, jobs, "12345678")
	require.Contains(t, jobs, "55555555", "job saved after the first migration survives the second startup")
	assert.Equal(t, "Data Engineer", jobs["55555555"].Title)

	stored, err := kvs.Get(ctx, models.KeyLegacyJobs, models.KeySchemaVersion)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyLegacyJobs)
	assert.Contains(t, stored, models.KeySchemaVersion)
}

func TestRollback_FailedRestoreKeepsMigratedData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rollback.db")
	engine, kvs := openEngine(t, dbPath, nil)
	ctx := context.Background()
	seedLegacy(t, kvs, legacyExample)
	require.True(t, engine.CheckAndMigrate(ctx).Migrated)

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TRIGGER keep_stats BEFORE DELETE ON kv_entries WHEN OLD.key = 'statistics'
		BEGIN SELECT RAISE(ABORT, 'statistics are locked'); END`)
	require.NoError(t, err)

	err = engine.Rollback(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore legacy data")

	keys := []string{models.KeyLegacyJobs, models.KeyJobs, models.KeySchemaVersion, models.KeyStatistics}
	stored, err := kvs.Get(ctx, keys...)
	require.NoError(t, err)
	assert.NotContains(t, stored, models.KeyLegacyJobs, "legacy map not restored alongside the schema version")
	assert.Contains(t, stored, models.KeyJobs)
	assert.Contains(t, stored, models.KeySchemaVersion)

	_, err = db.Exec(`DROP TRIGGER keep_stats`)
	require.NoError(t, err)
	require.NoError(t, engine.Rollback(ctx))
	stored, err = kvs.Get(ctx, keys...)
	require.NoError(t, err)
	assert.Equal(t, []string{models.KeyLegacyJobs}, slices.Collect(maps.Keys(stored)))
}

func TestStatusAndCleanup(t *testing.T) {
	engine, kvs := newEngine(t, nil)
	ctx := context.Background()

	st, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{CurrentVersion: 1, TargetVersion: models.CurrentSchemaVersion}, st)

	seedLegacy(t, kvs, legacyExample)
	require.True(t, engine.CheckAndMigrate(ctx).Success)

	st, err = engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{CurrentVersion: models.CurrentSchemaVersion, TargetVersion: models.CurrentSchemaVersion,
		HasBackup: true}, st)

	require.NoError(t, engine.CleanupBackup(ctx))
	st, err = engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.HasBackup)
	assert.ErrorIs(t, engine.Rollback(ctx), ErrNoBackup)
}

func TestImportLegacy(t *testing.T) {
	engine, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := engine.ImportLegacy(ctx, strings.NewReader(`not json`))
	require.Error(t, err)

	n, err := engine.ImportLegacy(ctx, strings.NewReader(`{"12345678":1704067200000,"23456789":1704153600000}`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res := engine.CheckAndMigrate(ctx)
	require.True(t, res.Success)
	assert.True(t, res.Migrated)
	assert.Equal(t, 2, res.Details.SuccessCount)

	_, err = engine.ImportLegacy(ctx, strings.NewReader(`{"34567890":1704067200000}`))
	assert.ErrorIs(t, err, ErrAlreadyMigrated)
}

func TestResultJSON(t *testing.T) {
	res := Result{Success: true, Migrated: true, Message: "successfully migrated 1 jobs",
		Details: &Details{TotalJobs: 2, SuccessCount: 1, ErrorCount: 1}}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"migrated":true,"message":"successfully migrated 1 jobs",
		"details":{"totalJobs":2,"successCount":1,"errorCount":1}}`, string(data))
}
