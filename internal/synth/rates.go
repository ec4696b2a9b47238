// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package synth

import (
	"math"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/recording"
)

// Rates is a firing-rate and amplitude summary, C-ordered [Frames, Channels].
type Rates struct {
	Frames, Channels int
	Coords           []recording.Point
	Rates            []float32
	Amplitudes       []float32
}

// RatesFromSpikes bins the spikes of d into frames of d.Config.RatesBin
// samples. Rates are in Hz; amplitudes are the mean absolute sample value at
// the spike index.
func RatesFromSpikes(d *Dataset) Rates {
	bin := d.Config.RatesBin
	T, C := d.Config.Samples, d.Config.Channels()
	frames := (T + bin - 1) / bin

	r := Rates{
		Frames:     frames,
		Channels:   C,
		Coords:     d.Coords,
		Rates:      make([]float32, frames*C),
		Amplitudes: make([]float32, frames*C),
	}
	counts := make([]int, frames*C)
	sums := make([]float64, frames*C)
	for i, frame := range d.SpikeFrames {
		ch := int(d.SpikeChannels[i])
		k := int(frame)/bin*C + ch
		counts[k]++
		sums[k] += math.Abs(float64(d.Raw[int(frame)*C+ch]))
	}
	for f := 0; f < frames; f++ {
		width := float64(min(bin, T-f*bin)) / d.Config.SamplingFrequency
		for c := 0; c < C; c++ {
			k := f*C + c
			r.Rates[k] = float32(float64(counts[k]) / width)
			if counts[k] > 0 {
				r.Amplitudes[k] = float32(sums[k] / float64(counts[k]))
			}
		}
	}
	return r
}

// Attrs returns the summary group attributes.
func (r Rates) Attrs() arraystore.Attrs {
	return arraystore.Attrs{
		recording.AttrNumFrames:   r.Frames,
		recording.AttrNumChannels: r.Channels,
		recording.AttrViewType:    RatesViewType,
	}
}

func (r Rates) arrays() (map[string]arraystore.Array, error) {
	shape := []int{r.Frames, r.Channels}
	out := make(map[string]arraystore.Array, 3)
	var err error
	if out["electrode_coords"], err = coordsArray(r.Coords); err != nil {
		return nil, err
	}
	if out["mean_firing_rates"], err = arraystore.NewArray(shape, r.Rates); err != nil {
		return nil, err
	}
	if out["mean_spike_amplitudes"], err = arraystore.NewArray(shape, r.Amplitudes); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryGroup returns the summary as an in-memory group.
func (r Rates) MemoryGroup() (*arraystore.MemoryGroup, error) {
	arrays, err := r.arrays()
	if err != nil {
		return nil, err
	}
	g := arraystore.NewMemoryGroup(r.Attrs())
	for name, arr := range arrays {
		g.AddDataset(name, arr)
	}
	return g, nil
}
