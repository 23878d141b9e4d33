package kv

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Watch streams key changes until ctx is done or the store is closed.
// The snapshot is taken before Watch returns, so writes issued after the call are always reported.
// Local writes wake the watcher immediately, writes from other processes are picked up by polling.
func (s *SQLiteStore) Watch(ctx context.Context) <-chan Change {
	out := make(chan Change)
	nudge := make(chan struct{}, 1)

	last, err := s.versions(ctx)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			close(out)
			return out
		}
		s.log.Logf("[WARN] watch snapshot failed: %v", err)
		last = map[string]int64{}
	}

	s.mu.Lock()
	s.nudges[nudge] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.nudges, nudge)
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-nudge:
			}

			cur, err := s.versions(ctx)
			if err != nil {
				if errors.Is(err, ErrClosed) || ctx.Err() != nil {
					return
				}
				s.log.Logf("[WARN] watch poll failed: %v", err)
				continue
			}

			keys := diffVersions(last, cur)
			last = cur
			if len(keys) == 0 {
				continue
			}

			select {
			case out <- Change{Keys: keys, Area: AreaLocal}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *SQLiteStore) versions(ctx context.Context) (map[string]int64, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var rows []struct {
		Key     string `db:"key"`
		Version int64  `db:"version"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, version FROM kv_entries`); err != nil {
		return nil, s.wrap("watch", nil, err)
	}
	res := make(map[string]int64, len(rows))
	for _, r := range rows {
		res[r.Key] = r.Version
	}
	return res, nil
}

// diffVersions returns sorted keys written or removed between two snapshots
func diffVersions(prev, cur map[string]int64) []string {
	var keys []string
	for k, v := range cur {
		if pv, ok := prev[k]; !ok || pv != v {
			keys = append(keys, k)
		}
	}
	for k := range prev {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
