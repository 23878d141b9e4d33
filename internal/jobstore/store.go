// Package jobstore owns the persisted job collection, its notes and status history,
// and the statistics derived from it.
//
// Every mutation is a read-modify-write of the whole collection. Within a process the
// store serializes mutations with a mutex, across processes each write is guarded by the
// version of the collection it was computed from and retried with backoff when stale.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/segmentio/ksuid"

	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/internal/settings"
	"github.com/khrees2412/applytrack/pkg/models"
)

var (
	// ErrNotFound is returned when a job required by the operation does not exist
	ErrNotFound = errors.New("job not found")
	// ErrNoteTooLong is returned for notes longer than the configured maximum
	ErrNoteTooLong = errors.New("note too long")
	// ErrEmptyNote is returned for blank notes
	ErrEmptyNote = errors.New("note is empty")
	// ErrEmptyID is returned when a job is saved without an id
	ErrEmptyID = errors.New("job id is required")
	// ErrEmptyStatus is returned when a status update carries no status
	ErrEmptyStatus = errors.New("status is required")
)

// Default option values
const (
	DefaultTrendWeeks    = 12
	DefaultMaxNoteLength = 1000
	DefaultRetries       = 5
	DefaultRetryDelay    = 20 * time.Millisecond
	DefaultRecentLimit   = 20
)

// Options tune a Store. Zero values are replaced with defaults.
type Options struct {
	Clock         func() time.Time
	Location      *time.Location // week boundaries are computed in this zone
	TrendWeeks    int
	MaxNoteLength int // in runes
	URLTemplate   string
	Retries       int // attempts of a write cycle rejected by a concurrent writer
	RetryDelay    time.Duration
	Logger        log.L
}

// Repeater retries fun with the configured strategy
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Store is the job store over a kv.Store
type Store struct {
	kv       kv.Store
	settings *settings.Store
	opts     Options
	log      log.L
	retry    Repeater

	mu sync.Mutex // serializes mutations of this process
}

// New makes a job store. The settings store is used to re-establish defaults on Initialize and ClearAll.
func New(kvs kv.Store, settingsStore *settings.Store, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TrendWeeks <= 0 {
		opts.TrendWeeks = DefaultTrendWeeks
	}
	if opts.MaxNoteLength <= 0 {
		opts.MaxNoteLength = DefaultMaxNoteLength
	}
	if opts.URLTemplate == "" {
		opts.URLTemplate = models.DefaultJobURLTemplate
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Store{
		kv:       kvs,
		settings: settingsStore,
		opts:     opts,
		log:      opts.Logger,
		retry: repeater.New(&strategy.Backoff{
			Repeats:  opts.Retries,
			Duration: opts.RetryDelay,
			Factor:   2,
			Jitter:   true,
		}),
	}
}

// Location returns the zone week boundaries are computed in
func (s *Store) Location() *time.Location { return s.opts.Location }

// Initialize records the current schema version and default settings when they are absent
func (s *Store) Initialize(ctx context.Context) error {
	err := s.kv.SetIf(ctx, kv.Precondition{Key: models.KeySchemaVersion},
		map[string]any{models.KeySchemaVersion: models.CurrentSchemaVersion})
	if err != nil && !errors.Is(err, kv.ErrVersionConflict) && !errors.Is(err, kv.ErrClosed) {
		return fmt.Errorf("init schema version: %w", err)
	}
	if s.settings != nil {
		if err := s.settings.EnsureDefaults(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetAllJobs returns every job keyed by id, empty when nothing is stored
func (s *Store) GetAllJobs(ctx context.Context) (map[string]models.JobRecord, error) {
	jobs, _, err := s.load(ctx)
	if errors.Is(err, kv.ErrClosed) {
		return map[string]models.JobRecord{}, nil
	}
	return jobs, err
}

// GetJob returns a job and whether it exists
func (s *Store) GetJob(ctx context.Context, id string) (models.JobRecord, bool, error) {
	jobs, err := s.GetAllJobs(ctx)
	if err != nil {
		return models.JobRecord{}, false, err
	}
	job, ok := jobs[id]
	return job, ok, nil
}

// JobExists reports whether a job is stored under id
func (s *Store) JobExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.GetJob(ctx, id)
	return ok, err
}

// SaveJob merges patch into the stored job (or creates it) and refreshes statistics
func (s *Store) SaveJob(ctx context.Context, patch models.JobPatch) (models.JobRecord, error) {
	if patch.ID == "" {
		return models.JobRecord{}, ErrEmptyID
	}
	var saved models.JobRecord
	err := s.mutate(ctx, "save job "+patch.ID, true, func(jobs map[string]models.JobRecord, now time.Time) error {
		var existing *models.JobRecord
		if cur, ok := jobs[patch.ID]; ok {
			existing = &cur
		}
		saved = Merge(existing, patch, now, s.opts.URLTemplate)
		jobs[patch.ID] = saved
		return nil
	})
	return saved, err
}

// DeleteJob removes a job, missing ids are ignored
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete job "+id, true, func(jobs map[string]models.JobRecord, _ time.Time) error {
		delete(jobs, id)
		return nil
	})
}

// UpdateStatus sets the status of a job and appends it to the status history
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if status == "" {
		return ErrEmptyStatus
	}
	return s.mutate(ctx, "update status "+id, true, func(jobs map[string]models.JobRecord, now time.Time) error {
		job, ok := jobs[id]
		if !ok {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		job = job.Clone()
		job.Status = status
		job.StatusHistory = append(job.StatusHistory, models.StatusChange{Status: status, Timestamp: now.UnixMilli()})
		jobs[id] = job
		return nil
	})
}

// AddNote appends a note to a job and returns it
func (s *Store) AddNote(ctx context.Context, id, text string) (models.Note, error) {
	if strings.TrimSpace(text) == "" {
		return models.Note{}, ErrEmptyNote
	}
	if n := utf8.RuneCountInString(text); n > s.opts.MaxNoteLength {
		return models.Note{}, fmt.Errorf("%d characters, max %d: %w", n, s.opts.MaxNoteLength, ErrNoteTooLong)
	}

	var note models.Note
	err := s.mutate(ctx, "add note "+id, false, func(jobs map[string]models.JobRecord, now time.Time) error {
		job, ok := jobs[id]
		if !ok {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		uid, err := ksuid.NewRandomWithTime(now)
		if err != nil {
			return fmt.Errorf("generate note id: %w", err)
		}
		note = models.Note{ID: "note_" + uid.String(), Text: text, Timestamp: now.UnixMilli()}
		job = job.Clone()
		job.Notes = append(job.Notes, note)
		jobs[id] = job
		return nil
	})
	return note, err
}

// DeleteNote removes a note from a job, unknown note ids are ignored
func (s *Store) DeleteNote(ctx context.Context, id, noteID string) error {
	return s.mutate(ctx, "delete note "+id, false, func(jobs map[string]models.JobRecord, _ time.Time) error {
		job, ok := jobs[id]
		if !ok {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		notes := make([]models.Note, 0, len(job.Notes))
		for _, n := range job.Notes {
			if n.ID != noteID {
				notes = append(notes, n)
			}
		}
		job.Notes = notes
		jobs[id] = job
		return nil
	})
}

// GetStatistics returns the last computed snapshot, or an empty one if none was computed
func (s *Store) GetStatistics(ctx context.Context) (models.Statistics, error) {
	res, err := s.kv.Get(ctx, models.KeyStatistics)
	if errors.Is(err, kv.ErrClosed) {
		return EmptyStatistics(), nil
	}
	if err != nil {
		return models.Statistics{}, fmt.Errorf("get statistics: %w", err)
	}
	entry, ok := res[models.KeyStatistics]
	if !ok {
		return EmptyStatistics(), nil
	}
	stats := EmptyStatistics()
	if err := entry.Decode(&stats); err != nil {
		return models.Statistics{}, fmt.Errorf("decode statistics: %w", err)
	}
	return stats, nil
}

// UpdateStatistics recomputes the snapshot from the current collection and stores it
func (s *Store) UpdateStatistics(ctx context.Context) (models.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.Statistics
	err := s.cycle(ctx, "update statistics", func(jobs map[string]models.JobRecord, now time.Time) (map[string]any, error) {
		stats = ComputeStatistics(jobs, now, s.opts.Location, s.opts.TrendWeeks)
		return map[string]any{models.KeyStatistics: stats}, nil
	})
	if errors.Is(err, kv.ErrClosed) {
		return EmptyStatistics(), nil
	}
	return stats, err
}

// ClearAll erases everything stored and re-establishes defaults
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	err := s.kv.Clear(ctx)
	s.mu.Unlock()
	if err != nil && !errors.Is(err, kv.ErrClosed) {
		return fmt.Errorf("clear: %w", err)
	}
	s.log.Logf("[INFO] all stored data cleared")
	return s.Initialize(ctx)
}

// StorageSize reports the bytes used by all stored keys and values
func (s *Store) StorageSize(ctx context.Context) (int64, error) {
	size, err := s.kv.BytesInUse(ctx)
	if errors.Is(err, kv.ErrClosed) {
		return 0, nil
	}
	return size, err
}

// mutate runs fn over the collection and writes the result guarded by the version it was read at.
// With withStats the recomputed statistics are written in the same call.
func (s *Store) mutate(ctx context.Context, op string, withStats bool,
	fn func(jobs map[string]models.JobRecord, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.cycle(ctx, op, func(jobs map[string]models.JobRecord, now time.Time) (map[string]any, error) {
		if err := fn(jobs, now); err != nil {
			return nil, err
		}
		values := map[string]any{models.KeyJobs: jobs}
		if withStats {
			values[models.KeyStatistics] = ComputeStatistics(jobs, now, s.opts.Location, s.opts.TrendWeeks)
		}
		return values, nil
	})
	if errors.Is(err, kv.ErrClosed) {
		return nil
	}
	return err
}

// cycle reads the collection, builds the values to write and writes them with a precondition on
// the collection version. Conflicts restart the whole cycle, any other error ends it.
func (s *Store) cycle(ctx context.Context, op string,
	build func(jobs map[string]models.JobRecord, now time.Time) (map[string]any, error)) error {
	var opErr error
	attempt := 0
	err := s.retry.Do(ctx, func() error {
		attempt++
		opErr = nil

		jobs, version, err := s.load(ctx)
		if err != nil {
			opErr = err
			return nil
		}
		values, err := build(jobs, s.opts.Clock())
		if err != nil {
			opErr = err
			return nil
		}

		err = s.kv.SetIf(ctx, kv.Precondition{Key: models.KeyJobs, Version: version}, values)
		if errors.Is(err, kv.ErrVersionConflict) {
			s.log.Logf("[DEBUG] %s: collection changed by another writer, attempt %d", op, attempt)
			return err
		}
		opErr = err
		return nil
	})
	if err != nil {
		if errors.Is(err, kv.ErrVersionConflict) {
			s.log.Logf("[WARN] %s: gave up after %d attempts", op, attempt)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if opErr != nil && !errors.Is(opErr, kv.ErrClosed) && !errors.Is(opErr, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, opErr)
	}
	return opErr
}

// load reads the collection and its version. A missing collection is empty at version 0.
func (s *Store) load(ctx context.Context) (map[string]models.JobRecord, int64, error) {
	res, err := s.kv.Get(ctx, models.KeyJobs)
	if err != nil {
		if errors.Is(err, kv.ErrClosed) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("get jobs: %w", err)
	}
	entry, ok := res[models.KeyJobs]
	if !ok {
		return map[string]models.JobRecord{}, 0, nil
	}
	var jobs map[string]models.JobRecord
	if err := entry.Decode(&jobs); err != nil {
		return nil, 0, fmt.Errorf("decode jobs: %w", err)
	}
	if jobs == nil {
		jobs = map[string]models.JobRecord{}
	}
	return jobs, entry.Version, nil
}
