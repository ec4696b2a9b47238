// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package synth

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/recording"
)

func small() Config {
	cfg := DefaultConfig()
	cfg.GridSize = 3
	cfg.Samples = 450
	cfg.SamplingFrequency = 1000
	cfg.SpikeRate = 20
	cfg.RatesBin = 100
	cfg.Seed = 7
	return cfg
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(small())
	require.NoError(t, err)
	b, err := Generate(small())
	require.NoError(t, err)
	assert.Equal(t, a.Raw, b.Raw)
	assert.Equal(t, a.SpikeFrames, b.SpikeFrames)

	cfg := small()
	cfg.Seed = 8
	c, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Raw, c.Raw)
}

func TestGenerateGridAndSpikes(t *testing.T) {
	cfg := small()
	cfg.NoiseStd = 0
	cfg.SpikeAmplitude = 100
	d, err := Generate(cfg)
	require.NoError(t, err)

	assert.Len(t, d.Coords, 9)
	assert.Equal(t, recording.Point{X: 60, Y: 30}, d.Coords[5])
	require.NotEmpty(t, d.SpikeFrames)
	assert.Len(t, d.SpikeChannels, len(d.SpikeFrames))

	C := cfg.Channels()
	for i, f := range d.SpikeFrames {
		assert.Less(t, int(f), cfg.Samples)
		assert.Less(t, int(d.SpikeChannels[i]), C)
		assert.Less(t, d.Raw[int(f)*C+int(d.SpikeChannels[i])], int16(0), "spike %d is negative-going", i)
	}
	assert.Less(t, d.Min, 0.0)
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.GridSize = 0 },
		func(c *Config) { c.GridSize = 300 },
		func(c *Config) { c.Samples = 0 },
		func(c *Config) { c.SamplingFrequency = 0 },
		func(c *Config) { c.Spacing = -1 },
		func(c *Config) { c.SpikeRate = -1 },
	} {
		cfg := small()
		mutate(&cfg)
		_, err := Generate(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestStats(t *testing.T) {
	lo, hi, med := stats([]int16{3, -1, 2, 4})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 4.0, hi)
	assert.Equal(t, 2.5, med)

	_, _, med = stats([]int16{5, -32768, 32767})
	assert.Equal(t, 5.0, med)
}

func TestRatesFromSpikes(t *testing.T) {
	cfg := small()
	cfg.NoiseStd = 0
	cfg.SpikeAmplitude = 100
	d, err := Generate(cfg)
	require.NoError(t, err)

	r := RatesFromSpikes(d)
	assert.Equal(t, 5, r.Frames)
	assert.Equal(t, 9, r.Channels)

	total := 0.0
	for f := 0; f < r.Frames; f++ {
		width := 0.1
		if f == 4 {
			width = 0.05
		}
		for c := 0; c < r.Channels; c++ {
			total += float64(r.Rates[f*9+c]) * width
		}
	}
	assert.InDelta(t, float64(len(d.SpikeFrames)), total, 1e-3)
}

func TestZarrRoundTrip(t *testing.T) {
	d, err := Generate(small())
	require.NoError(t, err)
	rates := RatesFromSpikes(d)

	dir := t.TempDir()
	w, err := zarr.NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, d.WriteZarr(w, "recording", &zarr.Compressor{ID: "zstd", Level: 3}))
	require.NoError(t, rates.WriteZarr(w, "rates", &zarr.Compressor{ID: "zlib", Level: 1}))

	ctx := context.Background()
	g, err := zarr.OpenDir(ctx, dir, "recording")
	require.NoError(t, err)

	arr, err := zarr.OpenArray(ctx, zarr.NewDirStore(dir), "recording/raw_data")
	require.NoError(t, err)
	assert.Equal(t, []int{200, 9}, arr.Meta().Chunks)

	rec, err := recording.Open(ctx, g)
	require.NoError(t, err)
	if diff := cmp.Diff(d.Metadata(), rec.Metadata()); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	C := d.Config.Channels()
	for _, idx := range []int{0, 199, 200, 449} {
		row, err := rec.Frame(ctx, idx)
		require.NoError(t, err)
		assert.Equal(t, d.Raw[idx*C:(idx+1)*C], row, "frame %d", idx)
	}
	assert.Len(t, rec.Spikes(), len(d.SpikeFrames))

	layout, err := rec.ElectrodeLayout(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.Coords, layout)

	rg, err := zarr.OpenDir(ctx, dir, "rates")
	require.NoError(t, err)
	fr, err := recording.OpenFiringRates(ctx, rg)
	require.NoError(t, err)
	got, err := fr.Rates(ctx, 2)
	require.NoError(t, err)
	for c := 0; c < C; c++ {
		assert.InDelta(t, float64(rates.Rates[2*C+c]), got[c], 1e-6)
	}
}

func TestMemoryGroupOpens(t *testing.T) {
	d, err := Generate(small())
	require.NoError(t, err)
	g, err := d.MemoryGroup()
	require.NoError(t, err)
	rec, err := recording.Open(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, d.Metadata(), rec.Metadata())

	rg, err := RatesFromSpikes(d).MemoryGroup()
	require.NoError(t, err)
	_, err = recording.OpenFiringRates(context.Background(), rg)
	require.NoError(t, err)
}
