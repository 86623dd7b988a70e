// Package cache holds process-wide values that are expensive to build and go
// stale after a fixed time.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// BuildFunc produces a fresh value.
type BuildFunc[T any] func(ctx context.Context) (T, error)

// EntryConfig represents the configuration for an Entry.
type EntryConfig struct {
	TTL time.Duration
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Entry caches one value built by a BuildFunc. The value is rebuilt on the
// first Get after TTL has passed. Concurrent Gets that find the entry empty
// or expired wait on a single build.
type Entry[T any] struct {
	config EntryConfig
	build  BuildFunc[T]
	group  singleflight.Group

	mu      sync.RWMutex
	value   T
	created time.Time
	valid   bool
	// gen counts invalidations; a build started before one is not stored
	gen uint64
}

func NewEntry[T any](build BuildFunc[T], config EntryConfig) (*Entry[T], error) {
	if build == nil {
		return nil, errors.New("cache entry requires a build function")
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Entry[T]{config: config, build: build}, nil
}

// Get returns the cached value, building it first if it is missing or older
// than TTL. A failed build leaves the previous state untouched.
func (e *Entry[T]) Get(ctx context.Context) (T, error) {
	e.mu.RLock()
	if e.fresh() {
		v := e.value
		e.mu.RUnlock()
		return v, nil
	}
	e.mu.RUnlock()

	res, err, _ := e.group.Do("build", func() (interface{}, error) {
		// another caller may have finished a build while we waited
		e.mu.RLock()
		if e.fresh() {
			v := e.value
			e.mu.RUnlock()
			return v, nil
		}
		gen := e.gen
		e.mu.RUnlock()

		v, err := e.build(ctx)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		if e.gen == gen {
			e.value = v
			e.created = e.config.Now()
			e.valid = true
		}
		e.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Invalidate forces the next Get to rebuild. A build already in flight still
// returns its value to its callers but does not replace the cached one.
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	e.valid = false
	e.gen++
	e.mu.Unlock()
}

// Created reports when the current value was built.
func (e *Entry[T]) Created() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.created, e.valid
}

// fresh must be called with mu held.
func (e *Entry[T]) fresh() bool {
	return e.valid && e.config.Now().Sub(e.created) < e.config.TTL
}
