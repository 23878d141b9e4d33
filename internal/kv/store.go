// Package kv is the key/value persistence adapter. Values are JSON documents,
// every write is atomic for the keys it touches and stamps them with a version
// taken from a monotonic sequence, so callers can do optimistic compare-and-swap.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AreaLocal is the only storage area this adapter serves
const AreaLocal = "local"

var (
	// ErrVersionConflict is returned by SetIf when the guarded key changed since it was read
	ErrVersionConflict = errors.New("version conflict")
	// ErrClosed is returned once the store was closed, typically while the process shuts down
	ErrClosed = errors.New("store closed")
)

// Entry is a stored value with the version stamp of the write that produced it
type Entry struct {
	Value   json.RawMessage
	Version int64
}

// Decode unmarshals the entry value into v
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

// Precondition guards a write on the version a key was read at.
// Version 0 means the key must be absent.
type Precondition struct {
	Key     string
	Version int64
}

// Change tells watchers that the listed keys were written or removed
type Change struct {
	Keys []string
	Area string
}

// Store is the persistence capability required by the job store, settings and migration
type Store interface {
	// Get returns entries for keys present; missing keys are simply absent from the result
	Get(ctx context.Context, keys ...string) (map[string]Entry, error)
	// Set writes all values in one transaction
	Set(ctx context.Context, values map[string]any) error
	// SetIf writes all values in one transaction if cond still holds, ErrVersionConflict otherwise
	SetIf(ctx context.Context, cond Precondition, values map[string]any) error
	// Remove deletes keys, absent keys are ignored
	Remove(ctx context.Context, keys ...string) error
	// SetAndRemove writes values and deletes keys in one transaction. Keys also present in values are kept.
	SetAndRemove(ctx context.Context, values map[string]any, remove ...string) error
	// Clear deletes every key
	Clear(ctx context.Context) error
	// BytesInUse reports the size of all stored values
	BytesInUse(ctx context.Context) (int64, error)
	// Watch streams changes until ctx is done. Treat each Change as "re-read", never as a delta.
	Watch(ctx context.Context) <-chan Change
}

// Error is a failure reported by the underlying database
type Error struct {
	Op   string
	Keys []string
	Err  error
}

func (e *Error) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("kv %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kv %s [%s]: %v", e.Op, strings.Join(e.Keys, ","), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
