// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package zarr reads and writes Zarr v2 hierarchies and exposes them through
// the arraystore contract.
package zarr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/cache"
)

// Store is the flat key/value layer under a Zarr hierarchy. Keys use "/"
// separators relative to the store root.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// KeyNotFoundError reports a missing store key. It matches arraystore.ErrNotFound.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string { return fmt.Sprintf("zarr: key %q not found", e.Key) }

// Is lets errors.Is(err, arraystore.ErrNotFound) succeed.
func (e *KeyNotFoundError) Is(target error) bool { return target == arraystore.ErrNotFound }

// IsNotFound reports whether err is (or wraps) a missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, arraystore.ErrNotFound)
}

// CachedStore puts a byte cache in front of another store. Concurrent misses
// for the same key share one backend read. Missing keys are not cached.
type CachedStore struct {
	inner  Store
	cache  cache.Cache
	ttl    time.Duration
	prefix string
	group  singleflight.Group
}

// NewCachedStore wraps inner. prefix namespaces keys so several recordings can
// share one cache.
func NewCachedStore(inner Store, c cache.Cache, prefix string, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl, prefix: prefix}
}

// Get implements Store.
func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	ck := s.prefix + key
	if data, ok := s.cache.Get(ctx, ck); ok {
		return data, nil
	}
	// one caller giving up must not fail the others sharing this read
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(ck, func() (any, error) {
		data, err := s.inner.Get(shared, key)
		if err != nil {
			return nil, err
		}
		s.cache.Set(shared, ck, data, s.ttl)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
