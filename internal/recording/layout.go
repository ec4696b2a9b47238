// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/meamovie/internal/arraystore"
)

// Point is an electrode position in layout units.
type Point struct {
	X float64
	Y float64
}

// layoutSlot is an explicit cache slot for the electrode coordinates: the
// loaded flag is checked before every access and set only after a successful
// fetch, so failures are retried on the next call.
type layoutSlot struct {
	mu     sync.Mutex
	loaded bool
	points []Point
	flight singleflight.Group
}

func (s *layoutSlot) get(ctx context.Context, group arraystore.Group, channels int) ([]Point, error) {
	s.mu.Lock()
	if s.loaded {
		pts := s.points
		s.mu.Unlock()
		return pts, nil
	}
	s.mu.Unlock()

	// The shared load outlives any single caller; each caller only stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(datasetElectrodeCoords, func() (any, error) {
		pts, err := loadLayout(shared, group, channels)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.points = pts
		s.loaded = true
		s.mu.Unlock()
		return pts, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Point), nil
	}
}

func (s *layoutSlot) isLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func loadLayout(ctx context.Context, group arraystore.Group, channels int) ([]Point, error) {
	ds, err := openDataset(ctx, group, datasetElectrodeCoords)
	if err != nil {
		return nil, err
	}
	shape := ds.Shape()
	switch {
	case len(shape) == 2 && shape[0] == channels && shape[1] == 2:
	case len(shape) == 1 && shape[0] == 2*channels:
	default:
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d 2] or [%d]",
			ErrInvalidDataset, datasetElectrodeCoords, shape, channels, 2*channels)
	}
	arr, err := ds.Read(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", datasetElectrodeCoords, err)
	}
	flat := arr.Float64s()
	pts := make([]Point, channels)
	for i := range pts {
		pts[i] = Point{X: flat[2*i], Y: flat[2*i+1]}
	}
	return pts, nil
}

// openDataset maps a missing path to *MissingDatasetError.
func openDataset(ctx context.Context, group arraystore.Group, name string) (arraystore.Dataset, error) {
	ds, err := group.Dataset(ctx, name)
	if errors.Is(err, arraystore.ErrNotFound) {
		return nil, &MissingDatasetError{Dataset: name, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return ds, nil
}
