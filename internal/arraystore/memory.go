// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package arraystore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryGroup is an in-memory Group. It is populated up front and then only
// read, so lookups take a read lock only.
type MemoryGroup struct {
	mu       sync.RWMutex
	attrs    Attrs
	groups   map[string]*MemoryGroup
	datasets map[string]*MemoryDataset
}

// NewMemoryGroup creates an empty group with the given attributes.
func NewMemoryGroup(attrs Attrs) *MemoryGroup {
	if attrs == nil {
		attrs = Attrs{}
	}
	return &MemoryGroup{
		attrs:    attrs,
		groups:   make(map[string]*MemoryGroup),
		datasets: make(map[string]*MemoryDataset),
	}
}

// Attrs implements Group.
func (g *MemoryGroup) Attrs() Attrs { return g.attrs }

// SetAttr sets a single attribute.
func (g *MemoryGroup) SetAttr(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attrs[key] = value
}

// AddGroup creates (or returns) the child group called name.
func (g *MemoryGroup) AddGroup(name string, attrs Attrs) *MemoryGroup {
	g.mu.Lock()
	defer g.mu.Unlock()
	if child, ok := g.groups[name]; ok {
		return child
	}
	child := NewMemoryGroup(attrs)
	g.groups[name] = child
	return child
}

// AddDataset stores arr under name and returns the dataset.
func (g *MemoryGroup) AddDataset(name string, arr Array) *MemoryDataset {
	g.mu.Lock()
	defer g.mu.Unlock()
	ds := &MemoryDataset{arr: arr, attrs: Attrs{}}
	g.datasets[name] = ds
	return ds
}

// Group implements Group.
func (g *MemoryGroup) Group(_ context.Context, path string) (Group, error) {
	node, name, err := g.walk(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return node, nil
	}
	node.mu.RLock()
	child, ok := node.groups[name]
	node.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("group %q: %w", path, ErrNotFound)
	}
	return child, nil
}

// Dataset implements Group.
func (g *MemoryGroup) Dataset(_ context.Context, path string) (Dataset, error) {
	node, name, err := g.walk(path)
	if err != nil {
		return nil, err
	}
	node.mu.RLock()
	ds, ok := node.datasets[name]
	node.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", path, ErrNotFound)
	}
	return ds, nil
}

// walk resolves every path element but the last.
func (g *MemoryGroup) walk(path string) (*MemoryGroup, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return g, "", nil
	}
	node := g
	for _, p := range parts[:len(parts)-1] {
		node.mu.RLock()
		next, ok := node.groups[p]
		node.mu.RUnlock()
		if !ok {
			return nil, "", fmt.Errorf("group %q: %w", path, ErrNotFound)
		}
		node = next
	}
	return node, parts[len(parts)-1], nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

// MemoryDataset is an in-memory Dataset backed by a full Array.
type MemoryDataset struct {
	arr   Array
	attrs Attrs
	reads atomic.Int64

	// BeforeRead, when set, runs before every Read. Tests use it to inject
	// latency or transient failures.
	BeforeRead func(ctx context.Context, sel Selection) error
}

// Shape implements Dataset.
func (d *MemoryDataset) Shape() []int { return d.arr.Shape() }

// DType implements Dataset.
func (d *MemoryDataset) DType() DType { return d.arr.DType() }

// Attrs implements Dataset.
func (d *MemoryDataset) Attrs() Attrs { return d.attrs }

// Reads returns how many Read calls reached this dataset.
func (d *MemoryDataset) Reads() int64 { return d.reads.Load() }

// Read implements Dataset.
func (d *MemoryDataset) Read(ctx context.Context, sel Selection) (Array, error) {
	d.reads.Add(1)
	if d.BeforeRead != nil {
		if err := d.BeforeRead(ctx, sel); err != nil {
			return Array{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Array{}, err
	}
	return d.arr.Slice(sel)
}
