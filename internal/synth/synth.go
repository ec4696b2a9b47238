// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package synth generates synthetic electrode-array recordings: Gaussian
// noise on a square electrode grid with injected negative-going spikes.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/recording"
)

// ErrInvalidConfig is returned for configurations that cannot produce a
// recording.
var ErrInvalidConfig = errors.New("synth: invalid config")

// View type attributes written on generated groups.
const (
	MovieViewType = "realtime512.MEAMovie"
	RatesViewType = "realtime512.MEAFiringRatesAndAmplitudes"
)

// Config describes the recording to generate.
type Config struct {
	GridSize          int     `yaml:"gridSize"`
	Spacing           float64 `yaml:"spacing"`
	Samples           int     `yaml:"samples"`
	SamplingFrequency float64 `yaml:"samplingFrequency"`
	StartTime         float64 `yaml:"startTime"`
	NoiseStd          float64 `yaml:"noiseStd"`
	SpikeRate         float64 `yaml:"spikeRate"`
	SpikeAmplitude    float64 `yaml:"spikeAmplitude"`
	// RatesBin is the number of samples summarized by one firing-rate frame.
	RatesBin int    `yaml:"ratesBin"`
	Seed     uint64 `yaml:"seed"`
}

// DefaultConfig is one second of an 8×8 grid at 20 kHz.
func DefaultConfig() Config {
	return Config{
		GridSize:          8,
		Spacing:           30,
		Samples:           20000,
		SamplingFrequency: 20000,
		NoiseStd:          10,
		SpikeRate:         5,
		SpikeAmplitude:    120,
		RatesBin:          2000,
		Seed:              1,
	}
}

func (c Config) validate() error {
	switch {
	case c.GridSize <= 0:
		return fmt.Errorf("%w: gridSize must be positive", ErrInvalidConfig)
	case c.GridSize*c.GridSize > math.MaxUint16+1:
		return fmt.Errorf("%w: gridSize %d exceeds uint16 channel indices", ErrInvalidConfig, c.GridSize)
	case c.Samples <= 0 || int64(c.Samples) > math.MaxUint32:
		return fmt.Errorf("%w: samples out of range", ErrInvalidConfig)
	case c.SamplingFrequency <= 0:
		return fmt.Errorf("%w: samplingFrequency must be positive", ErrInvalidConfig)
	case c.Spacing <= 0:
		return fmt.Errorf("%w: spacing must be positive", ErrInvalidConfig)
	case c.NoiseStd < 0 || c.SpikeRate < 0 || c.SpikeAmplitude < 0:
		return fmt.Errorf("%w: noise, rate and amplitude must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Channels returns the channel count.
func (c Config) Channels() int { return c.GridSize * c.GridSize }

// spike waveform relative to the event index, in units of amplitude.
var waveform = []struct {
	offset int
	gain   float64
}{
	{-1, -0.3},
	{0, -1},
	{1, -0.5},
	{2, 0.2},
}

// Dataset is a generated recording held in memory.
type Dataset struct {
	Config Config
	// Raw is C-ordered [Samples, Channels].
	Raw           []int16
	Coords        []recording.Point
	SpikeChannels []uint16
	SpikeFrames   []uint32

	Min, Max, Median float64
}

// Generate builds a recording. The same config always yields the same data.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.RatesBin <= 0 {
		cfg.RatesBin = DefaultConfig().RatesBin
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	T, C := cfg.Samples, cfg.Channels()

	d := &Dataset{Config: cfg, Coords: make([]recording.Point, C)}
	for i := range d.Coords {
		d.Coords[i] = recording.Point{
			X: float64(i%cfg.GridSize) * cfg.Spacing,
			Y: float64(i/cfg.GridSize) * cfg.Spacing,
		}
	}

	signal := make([]float64, T*C)
	for i := range signal {
		signal[i] = rng.NormFloat64() * cfg.NoiseStd
	}

	p := cfg.SpikeRate / cfg.SamplingFrequency
	for t := 0; t < T; t++ {
		for c := 0; c < C; c++ {
			if p <= 0 || rng.Float64() >= p {
				continue
			}
			d.SpikeChannels = append(d.SpikeChannels, uint16(c))
			d.SpikeFrames = append(d.SpikeFrames, uint32(t))
			for _, w := range waveform {
				if s := t + w.offset; s >= 0 && s < T {
					signal[s*C+c] += w.gain * cfg.SpikeAmplitude
				}
			}
		}
	}

	d.Raw = make([]int16, len(signal))
	for i, v := range signal {
		d.Raw[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
	}
	d.Min, d.Max, d.Median = stats(d.Raw)
	return d, nil
}

// stats returns min, max and median. The median of an even count is the mean
// of the two middle values.
func stats(values []int16) (lo, hi, median float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	var hist [1 << 16]int
	minV, maxV := values[0], values[0]
	for _, v := range values {
		hist[int(v)-math.MinInt16]++
		minV = min(minV, v)
		maxV = max(maxV, v)
	}
	n := len(values)
	kth := func(k int) float64 {
		seen := 0
		for b, count := range hist {
			seen += count
			if seen > k {
				return float64(b + math.MinInt16)
			}
		}
		return float64(maxV)
	}
	if n%2 == 1 {
		median = kth(n / 2)
	} else {
		median = (kth(n/2-1) + kth(n/2)) / 2
	}
	return float64(minV), float64(maxV), median
}

// Attrs returns the recording group attributes.
func (d *Dataset) Attrs() arraystore.Attrs {
	return arraystore.Attrs{
		recording.AttrStartTimeSec:        d.Config.StartTime,
		recording.AttrSamplingFrequencyHz: d.Config.SamplingFrequency,
		recording.AttrNumTimepoints:       d.Config.Samples,
		recording.AttrNumChannels:         d.Config.Channels(),
		recording.AttrDataMin:             d.Min,
		recording.AttrDataMax:             d.Max,
		recording.AttrDataMedian:          d.Median,
		recording.AttrNumSpikes:           len(d.SpikeFrames),
		recording.AttrViewType:            MovieViewType,
	}
}

// Metadata returns the header a recording client would read back.
func (d *Dataset) Metadata() recording.Metadata {
	return recording.Metadata{
		SampleCount:       d.Config.Samples,
		ChannelCount:      d.Config.Channels(),
		SamplingFrequency: d.Config.SamplingFrequency,
		StartTime:         d.Config.StartTime,
		DataMin:           d.Min,
		DataMax:           d.Max,
		DataMedian:        d.Median,
		SpikeCount:        len(d.SpikeFrames),
		ViewType:          MovieViewType,
	}
}

func coordsArray(points []recording.Point) (arraystore.Array, error) {
	flat := make([]float32, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, float32(p.X), float32(p.Y))
	}
	return arraystore.NewArray([]int{len(points), 2}, flat)
}

// arrays returns the named datasets of the recording group.
func (d *Dataset) arrays() (map[string]arraystore.Array, error) {
	T, C := d.Config.Samples, d.Config.Channels()
	out := make(map[string]arraystore.Array, 4)
	var err error
	if out["electrode_coords"], err = coordsArray(d.Coords); err != nil {
		return nil, err
	}
	if out["raw_data"], err = arraystore.NewArray([]int{T, C}, d.Raw); err != nil {
		return nil, err
	}
	if n := len(d.SpikeFrames); n > 0 {
		if out["spike_channel_indices"], err = arraystore.NewArray([]int{n}, d.SpikeChannels); err != nil {
			return nil, err
		}
		if out["spike_frame_indices"], err = arraystore.NewArray([]int{n}, d.SpikeFrames); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MemoryGroup returns the recording as an in-memory group.
func (d *Dataset) MemoryGroup() (*arraystore.MemoryGroup, error) {
	arrays, err := d.arrays()
	if err != nil {
		return nil, err
	}
	g := arraystore.NewMemoryGroup(d.Attrs())
	for name, arr := range arrays {
		g.AddDataset(name, arr)
	}
	return g, nil
}
