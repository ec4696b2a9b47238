// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package render

import (
	"math"
	"slices"
	"sync"

	"github.com/ManuGH/meamovie/internal/recording"
)

// Layout places electrodes on a canvas.
type Layout struct {
	Width, Height    int
	Scale            float64
	OffsetX, OffsetY float64
	// UnscaledRadius is the marker radius in electrode units; zero when the
	// default pixel radius applies.
	UnscaledRadius float64
	// Radius is the marker radius in pixels.
	Radius  float64
	Centers []recording.Point
}

// ComputeLayout fits coords into a width×height canvas minus padding,
// preserving aspect ratio and centering the bounding box.
func ComputeLayout(coords []recording.Point, width, height int, cfg Config) Layout {
	cfg = cfg.normalized()
	l := Layout{Width: width, Height: height, Scale: 1}
	if len(coords) == 0 {
		l.Radius = cfg.DefaultRadius
		return l
	}

	minX, maxX := coords[0].X, coords[0].X
	minY, maxY := coords[0].Y, coords[0].Y
	for _, p := range coords[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	extX, extY := maxX-minX, maxY-minY
	availW := float64(width) - 2*cfg.Padding
	availH := float64(height) - 2*cfg.Padding

	scale := math.Inf(1)
	if extX > 0 {
		scale = math.Min(scale, availW/extX)
	}
	if extY > 0 {
		scale = math.Min(scale, availH/extY)
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}
	l.Scale = math.Max(0, scale)
	l.OffsetX = (float64(width)-extX*l.Scale)/2 - minX*l.Scale
	l.OffsetY = (float64(height)-extY*l.Scale)/2 - minY*l.Scale

	l.Centers = make([]recording.Point, len(coords))
	for i, p := range coords {
		l.Centers[i] = recording.Point{X: p.X*l.Scale + l.OffsetX, Y: p.Y*l.Scale + l.OffsetY}
	}

	if d := minPairwiseDistance(coords); d > 0 {
		l.UnscaledRadius = cfg.RadiusFactor * d / 2
		l.Radius = l.UnscaledRadius * l.Scale
	} else {
		l.Radius = cfg.DefaultRadius
	}
	return l
}

// minPairwiseDistance returns the nearest-neighbour spacing, or 0 for fewer
// than two electrodes.
func minPairwiseDistance(coords []recording.Point) float64 {
	if len(coords) < 2 {
		return 0
	}
	best := math.Inf(1)
	for i := range coords {
		for j := i + 1; j < len(coords); j++ {
			d := math.Hypot(coords[i].X-coords[j].X, coords[i].Y-coords[j].Y)
			if d < best {
				best = d
			}
		}
	}
	return best
}

// HitTest returns the first electrode whose marker contains (x, y). The hit
// radius is floored at minHit.
func (l Layout) HitTest(x, y, minHit float64) (int, bool) {
	r := math.Max(l.Radius, minHit)
	for i, c := range l.Centers {
		if math.Hypot(x-c.X, y-c.Y) <= r {
			return i, true
		}
	}
	return -1, false
}

// LayoutCache memoizes the last layout and recomputes it only when the canvas
// size, the coordinates or the config change. Safe for concurrent use.
type LayoutCache struct {
	mu     sync.Mutex
	coords []recording.Point
	cfg    Config
	layout Layout
	valid  bool
	misses int
}

// Get returns the layout for the inputs.
func (c *LayoutCache) Get(coords []recording.Point, width, height int, cfg Config) Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.layout.Width == width && c.layout.Height == height &&
		c.cfg == cfg && slices.Equal(c.coords, coords) {
		return c.layout
	}
	c.misses++
	c.layout = ComputeLayout(coords, width, height, cfg)
	c.coords = append(c.coords[:0], coords...)
	c.cfg = cfg
	c.valid = true
	return c.layout
}

// Recomputes reports how many times the layout was computed.
func (c *LayoutCache) Recomputes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}
