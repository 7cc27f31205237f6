// Package cache provides get-or-compute caching with a staleness window.
//
// Storage is pluggable: Memory keeps entries in-process, Postgres persists
// them so several instances (or restarts) share fetched results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached value and the time it was produced.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
}

// Store persists entries by key. Implementations must be safe for concurrent use.
type Store[T any] interface {
	Get(ctx context.Context, key string) (Entry[T], bool, error)
	Set(ctx context.Context, key string, e Entry[T]) error
	Invalidate(ctx context.Context, key string) error
}

// ErrStoreWrite marks a value that was computed but could not be stored.
var ErrStoreWrite = errors.New("cache write failed")

// Loader serves values from a Store while they are younger than the TTL and
// recomputes them otherwise. Concurrent misses on one key share a single
// compute call.
type Loader[T any] struct {
	store Store[T]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
	log   *slog.Logger
}

// NewLoader creates a loader over store with the given staleness window.
func NewLoader[T any](store Store[T], ttl time.Duration) *Loader[T] {
	return &Loader[T]{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   slog.Default().With("component", "cache"),
	}
}

// TTL returns the staleness window.
func (l *Loader[T]) TTL() time.Duration { return l.ttl }

// Get returns the value for key, computing and storing it when the cached
// entry is missing or stale. hit reports whether the cached value was used.
// A failing store read is logged and treated as a miss; a failing store write
// returns the freshly computed value together with an error wrapping
// ErrStoreWrite.
//
// The shared compute runs detached from caller cancellation. A cancelled
// caller returns ctx.Err() while the others keep waiting for the result.
func (l *Loader[T]) Get(ctx context.Context, key string, compute func(context.Context) (T, error)) (value T, hit bool, err error) {
	e, ok, gerr := l.store.Get(ctx, key)
	if gerr != nil {
		l.log.Warn("cache read failed", "key", key, "error", gerr)
	} else if ok && l.fresh(e) {
		return e.Value, true, nil
	}

	type result struct {
		value T
		err   error
	}
	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		val, err := compute(detached)
		if err != nil {
			return nil, err
		}
		serr := l.store.Set(detached, key, Entry[T]{Value: val, FetchedAt: l.now()})
		if serr != nil {
			serr = fmt.Errorf("%w: %q: %w", ErrStoreWrite, key, serr)
		}
		return result{value: val, err: serr}, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result)
		return r.value, false, r.err
	}
}

// Invalidate drops key from the underlying store.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	return l.store.Invalidate(ctx, key)
}

func (l *Loader[T]) fresh(e Entry[T]) bool {
	return l.now().Sub(e.FetchedAt) < l.ttl
}
