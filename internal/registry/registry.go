// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package registry maps view type names to constructors. A Registry is built
// explicitly at startup and passed to whoever opens views.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/render"
)

var (
	// ErrUnknownView is returned by Open for an unregistered type.
	ErrUnknownView = errors.New("unknown view type")
	// ErrDuplicateView is returned by Register for a name already taken.
	ErrDuplicateView = errors.New("view type already registered")
)

// View is an opened view instance.
type View interface {
	Type() string
	// Close releases timers, callbacks and in-flight fetches. It must run on
	// the host loop.
	Close()
}

// Deps carries what a view constructor may need.
type Deps struct {
	Scheduler host.Scheduler
	Renderer  *render.Renderer
	URI       string
	Speed     float64
	Overlay   overlay.Config
	Colormap  string
	Contrast  float64
}

// Factory opens a view over group.
type Factory func(ctx context.Context, group arraystore.Group, deps Deps) (View, error)

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register view: empty name or nil factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateView, name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists registered types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open constructs a view of the given type.
func (r *Registry) Open(ctx context.Context, viewType string, group arraystore.Group, deps Deps) (View, error) {
	f, ok := r.Lookup(viewType)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownView, viewType, r.Names())
	}
	return f(ctx, group, deps)
}
