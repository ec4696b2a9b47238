// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package render rasterizes electrode frames as false-color markers with
// spike rings.
//
// Rendering is best-effort: missing inputs produce a blank canvas and partial
// inputs draw what exists. Render never fails and never panics.
package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/vector"

	"github.com/ManuGH/meamovie/internal/colormap"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/metrics"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/telemetry"
)

// Config holds the geometry and color constants of the renderer.
type Config struct {
	Padding         float64
	RadiusFactor    float64
	DefaultRadius   float64
	MinHitRadius    float64
	RingWidthFactor float64
	ContrastPivot   float64
	ContrastScale   float64
	Background      color.RGBA
	RingColor       color.RGBA
}

// DefaultConfig returns the stock renderer constants.
func DefaultConfig() Config {
	return Config{
		Padding:         20,
		RadiusFactor:    0.95,
		DefaultRadius:   5,
		MinHitRadius:    4,
		RingWidthFactor: 0.3,
		ContrastPivot:   40,
		ContrastScale:   10,
		Background:      color.RGBA{A: 0xff},
		RingColor:       color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Padding < 0 {
		c.Padding = 0
	}
	if c.RadiusFactor <= 0 {
		c.RadiusFactor = def.RadiusFactor
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = def.DefaultRadius
	}
	if c.MinHitRadius < 0 {
		c.MinHitRadius = 0
	}
	if c.RingWidthFactor <= 0 {
		c.RingWidthFactor = def.RingWidthFactor
	}
	if c.ContrastScale <= 0 {
		c.ContrastScale = def.ContrastScale
	}
	return c
}

// Stats are the global value statistics used to center the color scale.
type Stats struct {
	Min, Max, Median float64
}

// Normalizer maps a raw value to a colormap position in [0,1].
type Normalizer func(v float64) float64

// ContrastNormalizer centers values on the median and applies the contrast
// curve. Negative deflections map towards 1.
func ContrastNormalizer(s Stats, contrast float64, cfg Config) Normalizer {
	cfg = cfg.normalized()
	rng := 2 * math.Max(math.Abs(s.Max-s.Median), math.Abs(s.Min-s.Median))
	if rng == 0 || math.IsNaN(rng) {
		return func(float64) float64 { return 0.5 }
	}
	contrast = math.Max(0, math.Min(100, contrast))
	factor := math.Exp((contrast - cfg.ContrastPivot) / cfg.ContrastScale)
	half := rng / 2
	return func(v float64) float64 {
		x := -(v - s.Median) / half * factor
		x = math.Max(-1, math.Min(1, x))
		return (x + 1) / 2
	}
}

// LinearNormalizer maps [0, maxValue] onto [0,1], clamping outside values.
func LinearNormalizer(maxValue float64) Normalizer {
	if maxValue <= 0 || math.IsNaN(maxValue) {
		return func(float64) float64 { return 0 }
	}
	return func(v float64) float64 {
		return math.Max(0, math.Min(1, v/maxValue))
	}
}

// Scene is everything needed to draw one frame.
type Scene struct {
	Width, Height int
	Coords        []recording.Point
	// Values holds one raw value per channel; missing trailing channels are
	// skipped, NaN values are skipped.
	Values    []float64
	Normalize Normalizer
	Colormap  string
	// Highlights maps channel to ring opacity.
	Highlights map[int]float64
}

// Renderer draws scenes. Safe for concurrent use.
type Renderer struct {
	cfg    Config
	layout LayoutCache
	logger zerolog.Logger
}

// New returns a renderer.
func New(cfg Config) *Renderer {
	return &Renderer{cfg: cfg.normalized(), logger: log.WithComponent("render")}
}

// Config returns the renderer constants.
func (r *Renderer) Config() Config { return r.cfg }

// Layout returns the cached layout for coords on a width×height canvas.
func (r *Renderer) Layout(coords []recording.Point, width, height int) Layout {
	return r.layout.Get(coords, width, height, r.cfg)
}

// HitTest returns the channel under (x, y) on a width×height canvas.
func (r *Renderer) HitTest(coords []recording.Point, width, height int, x, y float64) (int, bool) {
	if len(coords) == 0 {
		return -1, false
	}
	return r.Layout(coords, width, height).HitTest(x, y, r.cfg.MinHitRadius)
}

// Render draws sc onto a new canvas.
func (r *Renderer) Render(ctx context.Context, sc Scene) (img *image.RGBA) {
	_, span := telemetry.Tracer("meamovie/render").Start(ctx, "render.Frame")
	span.SetAttributes(telemetry.RenderAttributes(sc.Width, sc.Height, len(sc.Values), sc.Colormap)...)
	defer span.End()

	start := time.Now()
	defer func() { metrics.ObserveRender(time.Since(start)) }()

	w, h := max(sc.Width, 1), max(sc.Height, 1)
	img = image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.cfg.Background), image.Point{}, draw.Src)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str(log.FieldEvent, "render.panic").
				Interface("panic", rec).
				Msg("render aborted")
		}
	}()

	if len(sc.Coords) == 0 {
		r.logger.Debug().Str(log.FieldEvent, "render.no_layout").Msg("layout not available, drawing blank canvas")
		return img
	}
	if len(sc.Values) == 0 {
		r.logger.Debug().Str(log.FieldEvent, "render.no_frame").Msg("frame not available, drawing blank canvas")
		return img
	}
	if len(sc.Values) != len(sc.Coords) {
		r.logger.Debug().
			Str(log.FieldEvent, "render.partial").
			Int(log.FieldChannels, len(sc.Coords)).
			Int("values", len(sc.Values)).
			Msg("value count does not match layout")
	}

	layout := r.Layout(sc.Coords, w, h)
	cmap, _ := colormap.ByName(sc.Colormap)
	norm := sc.Normalize
	if norm == nil {
		norm = LinearNormalizer(1)
	}

	z := vector.NewRasterizer(w, h)
	n := min(len(sc.Values), len(layout.Centers))
	for i := 0; i < n; i++ {
		v := sc.Values[i]
		if math.IsNaN(v) {
			continue
		}
		c := layout.Centers[i]
		z.Reset(w, h)
		addCircle(z, c.X, c.Y, layout.Radius, false)
		z.Draw(img, img.Bounds(), image.NewUniform(cmap(norm(v))), image.Point{})
	}

	// rings go on top of every fill
	lw := math.Max(1, r.cfg.RingWidthFactor*layout.Radius)
	for ch, op := range sc.Highlights {
		if ch < 0 || ch >= len(layout.Centers) || op <= 0 {
			continue
		}
		c := layout.Centers[ch]
		z.Reset(w, h)
		addCircle(z, c.X, c.Y, layout.Radius+lw/2, false)
		if inner := layout.Radius - lw/2; inner > 0 {
			addCircle(z, c.X, c.Y, inner, true)
		}
		ring := r.cfg.RingColor
		src := color.NRGBA{R: ring.R, G: ring.G, B: ring.B, A: uint8(math.Round(math.Min(1, op) * float64(ring.A)))}
		z.Draw(img, img.Bounds(), image.NewUniform(src), image.Point{})
	}
	return img
}

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// addCircle appends a closed circle path. reverse flips the winding so an
// inner circle cuts a hole in an outer one.
func addCircle(z *vector.Rasterizer, cx, cy, r float64, reverse bool) {
	k := r * kappa
	f := func(v float64) float32 { return float32(v) }
	if !reverse {
		z.MoveTo(f(cx+r), f(cy))
		z.CubeTo(f(cx+r), f(cy+k), f(cx+k), f(cy+r), f(cx), f(cy+r))
		z.CubeTo(f(cx-k), f(cy+r), f(cx-r), f(cy+k), f(cx-r), f(cy))
		z.CubeTo(f(cx-r), f(cy-k), f(cx-k), f(cy-r), f(cx), f(cy-r))
		z.CubeTo(f(cx+k), f(cy-r), f(cx+r), f(cy-k), f(cx+r), f(cy))
	} else {
		z.MoveTo(f(cx+r), f(cy))
		z.CubeTo(f(cx+r), f(cy-k), f(cx+k), f(cy-r), f(cx), f(cy-r))
		z.CubeTo(f(cx-k), f(cy-r), f(cx-r), f(cy-k), f(cx-r), f(cy))
		z.CubeTo(f(cx-r), f(cy+k), f(cx-k), f(cy+r), f(cx), f(cy+r))
		z.CubeTo(f(cx+k), f(cy+r), f(cx+r), f(cy+k), f(cx+r), f(cy))
	}
	z.ClosePath()
}
