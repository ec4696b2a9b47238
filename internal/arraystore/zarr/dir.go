// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/meamovie/internal/metrics"
)

// DirStore reads a Zarr hierarchy from a local directory.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: filepath.Clean(dir)}
}

// Get implements Store.
func (s *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := os.ReadFile(s.path(key))
	switch {
	case err == nil:
		metrics.ObserveStoreChunk("dir", metrics.ResultSuccess, time.Since(start))
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		metrics.ObserveStoreChunk("dir", metrics.ResultMissing, time.Since(start))
		return nil, &KeyNotFoundError{Key: key}
	default:
		metrics.ObserveStoreChunk("dir", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("zarr: read %s: %w", key, err)
	}
}

// path keeps keys inside the root.
func (s *DirStore) path(key string) string {
	clean := filepath.Clean("/" + strings.TrimLeft(key, "/"))
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

// OpenDir opens the group at path inside a local Zarr directory.
func OpenDir(ctx context.Context, dir, path string) (*Group, error) {
	return Open(ctx, NewDirStore(dir), path)
}
