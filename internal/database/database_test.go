package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"kv_entries", "kv_sequence"} {
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}

	var seq int64
	require.NoError(t, db.QueryRow("SELECT value FROM kv_sequence WHERE id=1").Scan(&seq))
	assert.Equal(t, int64(0), seq)
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("UPDATE kv_sequence SET value = 42 WHERE id = 1")
	require.NoError(t, err)

	// re-running must not reset the sequence
	require.NoError(t, RunMigrations(db))

	var seq int64
	require.NoError(t, db.QueryRow("SELECT value FROM kv_sequence WHERE id=1").Scan(&seq))
	assert.Equal(t, int64(42), seq)
}

func TestOpenInvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	db, err := Open(blocker)
	require.NoError(t, err)
	db.Close()

	// parent "directory" is a regular file
	_, err = Open(filepath.Join(blocker, "test.db"))
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".applytrack", "applytrack.db"), p)

	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, p)
}
