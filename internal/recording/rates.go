// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/log"
)

const (
	datasetMeanFiringRates     = "mean_firing_rates"
	datasetMeanSpikeAmplitudes = "mean_spike_amplitudes"
)

// FiringRates is the companion per-channel summary recording: mean firing
// rate and mean spike amplitude per frame, drawn over the same electrode layout.
type FiringRates struct {
	group    arraystore.Group
	frames   int
	channels int
	layout   layoutSlot

	statsMu     sync.Mutex
	statsLoaded bool
	maxRate     float64
	maxAmp      float64
}

// OpenFiringRates validates num_frames and num_channels on group.
func OpenFiringRates(ctx context.Context, group arraystore.Group) (*FiringRates, error) {
	attrs := group.Attrs()
	frames, err := requireInt(attrs, AttrNumFrames)
	if err != nil {
		return nil, err
	}
	channels, err := requireInt(attrs, AttrNumChannels)
	if err != nil {
		return nil, err
	}
	if frames <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: num_frames=%d num_channels=%d", ErrInvalidMetadata, frames, channels)
	}
	fr := &FiringRates{group: group, frames: frames, channels: channels}

	logger := log.WithComponent("recording")
	logger.Info().
		Str(log.FieldEvent, "firing_rates.opened").
		Int("frames", frames).
		Int(log.FieldChannels, channels).
		Msg("firing rate summary opened")
	return fr, nil
}

// NumFrames returns the number of summary frames.
func (f *FiringRates) NumFrames() int { return f.frames }

// NumChannels returns the channel count.
func (f *FiringRates) NumChannels() int { return f.channels }

// ElectrodeLayout returns the memoized electrode positions.
func (f *FiringRates) ElectrodeLayout(ctx context.Context) ([]Point, error) {
	return f.layout.get(ctx, f.group, f.channels)
}

// Rates returns the mean firing rate of every channel at frame.
func (f *FiringRates) Rates(ctx context.Context, frame int) ([]float64, error) {
	return f.row(ctx, datasetMeanFiringRates, frame)
}

// Amplitudes returns the mean spike amplitude of every channel at frame.
func (f *FiringRates) Amplitudes(ctx context.Context, frame int) ([]float64, error) {
	return f.row(ctx, datasetMeanSpikeAmplitudes, frame)
}

func (f *FiringRates) row(ctx context.Context, name string, frame int) ([]float64, error) {
	if frame < 0 || frame >= f.frames {
		return nil, &IndexOutOfRangeError{Index: frame, Len: f.frames}
	}
	ds, err := f.dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	arr, err := ds.Read(ctx, arraystore.Row(frame, f.channels))
	if err != nil {
		return nil, fmt.Errorf("read %s frame %d: %w", name, frame, err)
	}
	return arr.Float64s(), nil
}

func (f *FiringRates) dataset(ctx context.Context, name string) (arraystore.Dataset, error) {
	ds, err := openDataset(ctx, f.group, name)
	if err != nil {
		return nil, err
	}
	if shape := ds.Shape(); len(shape) != 2 || shape[0] != f.frames || shape[1] != f.channels {
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d %d]", ErrInvalidDataset, name, shape, f.frames, f.channels)
	}
	return ds, nil
}

// Maxima returns the largest rate and amplitude over the whole summary. They
// are computed once on first use and serve as normalization ranges.
func (f *FiringRates) Maxima(ctx context.Context) (maxRate, maxAmplitude float64, err error) {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	if f.statsLoaded {
		return f.maxRate, f.maxAmp, nil
	}
	if f.maxRate, err = f.datasetMax(ctx, datasetMeanFiringRates); err != nil {
		return 0, 0, err
	}
	if f.maxAmp, err = f.datasetMax(ctx, datasetMeanSpikeAmplitudes); err != nil {
		return 0, 0, err
	}
	f.statsLoaded = true
	return f.maxRate, f.maxAmp, nil
}

func (f *FiringRates) datasetMax(ctx context.Context, name string) (float64, error) {
	ds, err := f.dataset(ctx, name)
	if err != nil {
		return 0, err
	}
	arr, err := ds.Read(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	m := 0.0
	for i := 0; i < arr.Len(); i++ {
		if v := arr.Float64At(i); v > m {
			m = v
		}
	}
	return m, nil
}
