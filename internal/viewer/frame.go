// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"fmt"

	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
)

// FrameScene builds a stand-alone scene for one exact sample index: the
// frame values and that index's spikes at peak opacity, with no decay. It
// reads from the store and must not run on the host loop.
func FrameScene(ctx context.Context, rec *recording.Recording, r *render.Renderer, index, width, height int, s Settings, peak float64) (render.Scene, error) {
	values, err := rec.Frame(ctx, index)
	if err != nil {
		return render.Scene{}, err
	}
	coords, err := rec.ElectrodeLayout(ctx)
	if err != nil {
		return render.Scene{}, fmt.Errorf("electrode layout: %w", err)
	}
	highlights := make(map[int]float64)
	for _, ch := range rec.SpikingChannels(index) {
		highlights[ch] = peak
	}
	return render.Scene{
		Width:      width,
		Height:     height,
		Coords:     coords,
		Values:     toFloats(values),
		Normalize:  render.ContrastNormalizer(statsOf(rec.Metadata()), s.Contrast, r.Config()),
		Colormap:   s.Colormap,
		Highlights: highlights,
	}, nil
}
