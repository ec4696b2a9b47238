// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/registry"
)

// Register adds the movie and firing-rate views to reg.
func Register(reg *registry.Registry) error {
	return errors.Join(
		reg.Register(MovieViewType, openMovie),
		reg.Register(RatesViewType, openRates),
	)
}

func openMovie(ctx context.Context, group arraystore.Group, deps registry.Deps) (registry.View, error) {
	if deps.Scheduler == nil || deps.Renderer == nil {
		return nil, errors.New("movie view needs a scheduler and a renderer")
	}
	rec, err := recording.Open(ctx, group, recording.WithURI(deps.URI))
	if err != nil {
		return nil, err
	}
	return NewMovie(deps.Scheduler, deps.Renderer, rec, MovieOptions{
		Speed:    deps.Speed,
		Overlay:  deps.Overlay,
		Settings: Settings{Colormap: deps.Colormap, Contrast: deps.Contrast},
	}), nil
}

func openRates(ctx context.Context, group arraystore.Group, deps registry.Deps) (registry.View, error) {
	if deps.Renderer == nil {
		return nil, errors.New("rates view needs a renderer")
	}
	fr, err := recording.OpenFiringRates(ctx, group)
	if err != nil {
		return nil, err
	}
	return NewRatesView(fr, deps.Renderer, deps.Colormap), nil
}
