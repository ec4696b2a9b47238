// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"fmt"
	"image"

	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
)

// RatesViewType is the view type handled by RatesView.
const RatesViewType = "realtime512.MEAFiringRatesAndAmplitudes"

// RatesInspection describes the electrode under a pointer in the summary view.
type RatesInspection struct {
	Channel   int     `json:"channel"`
	Rate      float64 `json:"rate"`
	Amplitude float64 `json:"amplitude"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// RatesView draws per-frame firing rates as marker color and mean spike
// amplitudes as ring opacity, both normalized by their global maxima. It has
// no playback state and is safe for concurrent use.
type RatesView struct {
	fr       *recording.FiringRates
	renderer *render.Renderer
	colormap string
}

// NewRatesView wraps a firing-rate summary.
func NewRatesView(fr *recording.FiringRates, renderer *render.Renderer, colormapName string) *RatesView {
	return &RatesView{fr: fr, renderer: renderer, colormap: colormapName}
}

// Type implements registry.View.
func (v *RatesView) Type() string { return RatesViewType }

// Close implements registry.View.
func (v *RatesView) Close() {}

// Summary returns the underlying dataset.
func (v *RatesView) Summary() *recording.FiringRates { return v.fr }

// Scene builds the scene for frame.
func (v *RatesView) Scene(ctx context.Context, frame, width, height int) (render.Scene, error) {
	coords, err := v.fr.ElectrodeLayout(ctx)
	if err != nil {
		return render.Scene{}, fmt.Errorf("electrode layout: %w", err)
	}
	rates, err := v.fr.Rates(ctx, frame)
	if err != nil {
		return render.Scene{}, err
	}
	amps, err := v.fr.Amplitudes(ctx, frame)
	if err != nil {
		return render.Scene{}, err
	}
	maxRate, maxAmp, err := v.fr.Maxima(ctx)
	if err != nil {
		return render.Scene{}, err
	}

	ampNorm := render.LinearNormalizer(maxAmp)
	highlights := make(map[int]float64, len(amps))
	for ch, a := range amps {
		if op := ampNorm(a); op > 0 {
			highlights[ch] = op
		}
	}
	return render.Scene{
		Width:      width,
		Height:     height,
		Coords:     coords,
		Values:     rates,
		Normalize:  render.LinearNormalizer(maxRate),
		Colormap:   v.colormap,
		Highlights: highlights,
	}, nil
}

// Render draws frame.
func (v *RatesView) Render(ctx context.Context, frame, width, height int) (*image.RGBA, error) {
	sc, err := v.Scene(ctx, frame, width, height)
	if err != nil {
		return nil, err
	}
	return v.renderer.Render(ctx, sc), nil
}

// Inspect hit-tests (x, y) and reports the rate and amplitude at frame.
func (v *RatesView) Inspect(ctx context.Context, frame int, x, y float64, width, height int) (RatesInspection, bool, error) {
	coords, err := v.fr.ElectrodeLayout(ctx)
	if err != nil {
		return RatesInspection{}, false, err
	}
	rates, err := v.fr.Rates(ctx, frame)
	if err != nil {
		return RatesInspection{}, false, err
	}
	ch, ok := v.renderer.HitTest(coords, width, height, x, y)
	if !ok {
		return RatesInspection{}, false, nil
	}
	amps, err := v.fr.Amplitudes(ctx, frame)
	if err != nil {
		return RatesInspection{}, false, err
	}
	return RatesInspection{
		Channel:   ch,
		Rate:      rates[ch],
		Amplitude: amps[ch],
		X:         coords[ch].X,
		Y:         coords[ch].Y,
	}, true, nil
}
