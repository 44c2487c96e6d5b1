// Package lock defines per-record mutual exclusion used around
// read-validate-write sequences.
package lock

import (
	"context"
	"slices"
	"strings"

	"pharmaflow/internal/core/id"
)

// Locker serializes writers on a key.
// Acquire blocks until the key is free, ctx is done, or the implementation gives up;
// giving up is reported as an apperror with code CONFLICT.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RecordKey is the lock key for a single record.
func RecordKey(kind string, recordID id.ID) string {
	return kind + ":" + recordID.String()
}

// NaturalKey is the lock key for a record identified by business fields,
// used when the record may not exist yet.
func NaturalKey(kind string, parts ...string) string {
	return kind + ":" + strings.Join(parts, "|")
}

// AcquireAll takes every key in sorted order so that callers locking
// overlapping sets cannot deadlock. The returned func releases them all.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// Noop never blocks.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
