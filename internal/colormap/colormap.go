// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package colormap maps normalized values in [0,1] to colors.
//
// Every scheme is pure and total on [0,1]. Inputs are not clamped; callers
// normalize before lookup.
package colormap

import (
	"image/color"
	"math"
	"sort"
)

// Func maps v in [0,1] to a color.
type Func func(v float64) color.RGBA

// Scheme names.
const (
	Grayscale = "grayscale"
	BlueRed   = "bluered"
	Viridis   = "viridis"
	Hot       = "hot"
	Cool      = "cool"
)

var schemes = map[string]Func{
	Grayscale: grayscale,
	BlueRed:   blueRed,
	Viridis:   viridis,
	Hot:       hot,
	Cool:      cool,
}

// ByName returns the named scheme, falling back to grayscale for unknown
// names. ok reports whether name was known.
func ByName(name string) (fn Func, ok bool) {
	fn, ok = schemes[name]
	if !ok {
		return grayscale, false
	}
	return fn, true
}

// Names lists the available schemes in sorted order.
func Names() []string {
	names := make([]string, 0, len(schemes))
	for n := range schemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// channel converts a unit intensity to a byte.
func channel(x float64) uint8 {
	return uint8(math.Round(x * 255))
}

func rgb(r, g, b float64) color.RGBA {
	return color.RGBA{R: channel(r), G: channel(g), B: channel(b), A: 0xff}
}

func grayscale(v float64) color.RGBA {
	return rgb(v, v, v)
}

// blueRed is blue at 0, gray at 0.5 and red at 1; green peaks at the midpoint.
func blueRed(v float64) color.RGBA {
	return rgb(v, math.Min(v, 1-v), 1-v)
}

var viridisStops = [5][3]float64{
	{0x44, 0x01, 0x54},
	{0x3b, 0x52, 0x8b},
	{0x21, 0x91, 0x8c},
	{0x5e, 0xc9, 0x62},
	{0xfd, 0xe7, 0x25},
}

// viridis interpolates linearly between five stops across four equal segments.
func viridis(v float64) color.RGBA {
	pos := v * 4
	i := int(math.Floor(pos))
	if i < 0 {
		i = 0
	}
	if i > 3 {
		i = 3
	}
	t := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	mix := func(k int) float64 { return (a[k] + (b[k]-a[k])*t) / 255 }
	return rgb(mix(0), mix(1), mix(2))
}

// hot runs black to red, red to yellow, yellow to white over equal thirds.
func hot(v float64) color.RGBA {
	r := math.Min(1, 3*v)
	g := math.Min(1, math.Max(0, 3*v-1))
	b := math.Min(1, math.Max(0, 3*v-2))
	return rgb(r, g, b)
}

func cool(v float64) color.RGBA {
	return rgb(v, 1-v, 1)
}
