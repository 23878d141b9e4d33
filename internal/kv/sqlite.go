package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
)

const defaultPollInterval = 500 * time.Millisecond

// Options tune a SQLiteStore
type Options struct {
	PollInterval time.Duration // how often watchers look for writes made by other processes
	Logger       log.L
}

// SQLiteStore implements Store on top of the kv_entries table
type SQLiteStore struct {
	db           *sqlx.DB
	pollInterval time.Duration
	log          log.L
	closed       atomic.Bool

	mu     sync.Mutex
	nudges map[chan struct{}]struct{}
}

type entryRow struct {
	Key     string `db:"key"`
	Value   string `db:"value"`
	Version int64  `db:"version"`
}

// NewSQLiteStore wraps an opened database that already has the kv tables.
// The store takes ownership of db and closes it in Close.
func NewSQLiteStore(db *sql.DB, driverName string, opts Options) *SQLiteStore {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &SQLiteStore{
		db:           sqlx.NewDb(db, driverName),
		pollInterval: opts.PollInterval,
		log:          opts.Logger,
		nudges:       map[chan struct{}]struct{}{},
	}
}

// Get returns entries for the keys present
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	res := make(map[string]Entry, len(keys))
	if len(keys) == 0 {
		return res, nil
	}

	query, args, err := sqlx.In(`SELECT key, value, version FROM kv_entries WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, s.wrap("get", keys, err)
	}
	for _, r := range rows {
		res[r.Key] = Entry{Value: json.RawMessage(r.Value), Version: r.Version}
	}
	return res, nil
}

// Set writes all values atomically
func (s *SQLiteStore) Set(ctx context.Context, values map[string]any) error {
	return s.write(ctx, "set", nil, values, nil)
}

// SetIf writes all values atomically if the guarded key is still at cond.Version
func (s *SQLiteStore) SetIf(ctx context.Context, cond Precondition, values map[string]any) error {
	return s.write(ctx, "set-if", &cond, values, nil)
}

// SetAndRemove writes values and deletes the other keys atomically
func (s *SQLiteStore) SetAndRemove(ctx context.Context, values map[string]any, remove ...string) error {
	return s.write(ctx, "set-remove", nil, values, remove)
}

// Remove deletes keys
func (s *SQLiteStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.inTx(ctx, "remove", keys, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`DELETE FROM kv_entries WHERE key IN (?)`, keys)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		return err
	})
}

// Clear deletes every key. The version sequence is kept, so stamps never repeat.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, "clear", nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM kv_entries`)
		return err
	})
}

// BytesInUse reports the stored size of keys and values
func (s *SQLiteStore) BytesInUse(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var size int64
	err := s.db.GetContext(ctx, &size, `SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv_entries`)
	if err != nil {
		return 0, s.wrap("size", nil, err)
	}
	return size, nil
}

// Close marks the store closed and closes the database
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) write(ctx context.Context, op string, cond *Precondition, values map[string]any, remove []string) error {
	drop := make([]string, 0, len(remove))
	for _, k := range remove {
		if _, ok := values[k]; !ok {
			drop = append(drop, k)
		}
	}
	if len(values) == 0 && len(drop) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", k, err)
		}
		keys = append(keys, k)
		encoded[k] = string(data)
	}
	sort.Strings(keys)

	return s.inTx(ctx, op, append(keys[:len(keys):len(keys)], drop...), func(tx *sqlx.Tx) error {
		if cond != nil {
			var current int64
			err := tx.GetContext(ctx, &current, `SELECT version FROM kv_entries WHERE key = ?`, cond.Key)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if current != cond.Version {
				return fmt.Errorf("%s at version %d, expected %d: %w", cond.Key, current, cond.Version, ErrVersionConflict)
			}
		}

		if len(drop) > 0 {
			query, args, err := sqlx.In(`DELETE FROM kv_entries WHERE key IN (?)`, drop)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return err
			}
		}
		if len(keys) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE kv_sequence SET value = value + 1 WHERE id = 1`); err != nil {
			return err
		}
		var stamp int64
		if err := tx.GetContext(ctx, &stamp, `SELECT value FROM kv_sequence WHERE id = 1`); err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		for _, k := range keys {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO kv_entries (key, value, version, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version,
				updated_at = excluded.updated_at`,
				k, encoded[k], stamp, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn in a write transaction and wakes watchers after commit
func (s *SQLiteStore) inTx(ctx context.Context, op string, keys []string, fn func(tx *sqlx.Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.wrap(op, keys, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return s.wrap(op, keys, err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap(op, keys, err)
	}

	s.nudge()
	return nil
}

func (s *SQLiteStore) wrap(op string, keys []string, err error) error {
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return ErrClosed
	}
	return &Error{Op: op, Keys: keys, Err: err}
}

func (s *SQLiteStore) nudge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.nudges {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
