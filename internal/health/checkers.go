// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/cache"
)

// StoreChecker reads one metadata key from the Zarr store.
type StoreChecker struct {
	store zarr.Store
	key   string
}

// NewStoreChecker probes key (usually the group's .zgroup) on store.
func NewStoreChecker(store zarr.Store, key string) *StoreChecker {
	return &StoreChecker{store: store, key: key}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if _, err := c.store.Get(ctx, c.key); err != nil {
		msg := "store unreachable"
		if zarr.IsNotFound(err) {
			msg = "group metadata missing"
		}
		return CheckResult{Status: StatusUnhealthy, Message: msg, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: c.key + " readable"}
}

// CacheChecker round-trips a probe value through the chunk cache. Cache
// failures only cost performance, so they report degraded.
type CacheChecker struct {
	kind  string
	cache cache.Cache
}

// NewCacheChecker wraps c; kind is the configured backend name.
func NewCacheChecker(kind string, c cache.Cache) *CacheChecker {
	return &CacheChecker{kind: kind, cache: c}
}

func (c *CacheChecker) Name() string { return "chunk_cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if c.kind == "" || c.kind == "none" {
		return CheckResult{Status: StatusHealthy, Message: "disabled"}
	}
	key := "health:" + uuid.NewString()
	want := []byte(key)
	c.cache.Set(ctx, key, want, 30*time.Second)
	defer c.cache.Delete(ctx, key)

	got, ok := c.cache.Get(ctx, key)
	if !ok || !bytes.Equal(got, want) {
		return CheckResult{Status: StatusDegraded, Message: c.kind + " cache round trip failed"}
	}
	return CheckResult{Status: StatusHealthy, Message: c.kind + " cache ok"}
}

// FuncChecker adapts a function. It lets the daemon report view state
// without this package knowing about views.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewFuncChecker creates a named checker around fn.
func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
