// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/host/hosttest"
	"github.com/ManuGH/meamovie/internal/metrics"
	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/playback"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/registry"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/synth"
)

const (
	samples  = 20000
	channels = 4
	fs       = 20000.0
	wait     = 2 * time.Second
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// gate blocks reads of chosen frame indices until released.
type gate struct {
	mu      sync.Mutex
	blocked map[int]chan struct{}
	fail    map[int]error
}

func newGate() *gate {
	return &gate{blocked: map[int]chan struct{}{}, fail: map[int]error{}}
}

func (g *gate) block(index int) func() {
	ch := make(chan struct{})
	g.mu.Lock()
	g.blocked[index] = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

func (g *gate) failWith(index int, err error) {
	g.mu.Lock()
	g.fail[index] = err
	g.mu.Unlock()
}

func (g *gate) beforeRead(ctx context.Context, sel arraystore.Selection) error {
	if len(sel) == 0 {
		return nil
	}
	g.mu.Lock()
	ch := g.blocked[sel[0].Start]
	err := g.fail[sel[0].Start]
	g.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func movieGroup(t *testing.T, g *gate) *arraystore.MemoryGroup {
	t.Helper()
	grp := arraystore.NewMemoryGroup(arraystore.Attrs{
		recording.AttrNumTimepoints:       samples,
		recording.AttrNumChannels:         channels,
		recording.AttrSamplingFrequencyHz: fs,
		recording.AttrStartTimeSec:        0.0,
		recording.AttrDataMin:             0.0,
		recording.AttrDataMax:             999.0,
		recording.AttrDataMedian:          499.5,
		recording.AttrNumSpikes:           2,
	})
	raw := make([]int16, samples*channels)
	for i := range raw {
		raw[i] = int16(i % 1000)
	}
	arr, err := arraystore.NewArray([]int{samples, channels}, raw)
	require.NoError(t, err)
	ds := grp.AddDataset("raw_data", arr)
	if g != nil {
		ds.BeforeRead = g.beforeRead
	}

	coords, err := arraystore.NewArray([]int{channels, 2}, []float32{0, 0, 10, 0, 0, 10, 10, 10})
	require.NoError(t, err)
	grp.AddDataset("electrode_coords", coords)

	chs, err := arraystore.NewArray([]int{2}, []uint16{3, 1})
	require.NoError(t, err)
	grp.AddDataset("spike_channel_indices", chs)
	frs, err := arraystore.NewArray([]int{2}, []uint32{100, 7000})
	require.NoError(t, err)
	grp.AddDataset("spike_frame_indices", frs)
	return grp
}

func openRecording(t *testing.T, g *gate) *recording.Recording {
	t.Helper()
	rec, err := recording.Open(context.Background(), movieGroup(t, g), recording.WithURI("mem://test"))
	require.NoError(t, err)
	return rec
}

func newMovie(t *testing.T, f *hosttest.Fake, rec *recording.Recording) *Movie {
	t.Helper()
	m := NewMovie(f, render.New(render.DefaultConfig()), rec, MovieOptions{
		Overlay:  overlay.DefaultConfig(),
		Settings: Settings{Colormap: "bluered", Contrast: 40},
	})
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 0 && m.layout != nil }))
	return m
}

func TestMovieSpikeOverlayScenario(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))
	defer m.Close()

	m.Play()
	f.Paint(5 * time.Millisecond)
	assert.Equal(t, 100, m.State().Index)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 100 }))

	assert.InDelta(t, 0.9, m.Highlights()[3], 1e-9)
	f.Advance(250 * time.Millisecond)
	assert.InDelta(t, 0.45, m.Highlights()[3], 1e-9)
	f.Advance(250 * time.Millisecond)
	assert.Empty(t, m.Highlights())
}

func TestMoviePlaybackScenario(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))
	defer m.Close()

	m.Play()
	f.Paint(250 * time.Millisecond)
	st := m.State()
	assert.Equal(t, playback.Playing, st.State)
	assert.InDelta(t, 0.25, st.Time, 1e-9)
	assert.Equal(t, 5000, st.Index)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 5000 }))

	frame := m.Scene(100, 100).Values
	require.Len(t, frame, channels)
	assert.Equal(t, float64((5000*channels)%1000), frame[0])
}

func TestMoviePausedShowsExactSpikes(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))
	defer m.Close()

	m.Seek(7000 / fs)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 7000 }))
	assert.Equal(t, map[int]float64{1: 0.9}, m.Highlights())

	f.Advance(5 * time.Second)
	assert.Equal(t, map[int]float64{1: 0.9}, m.Highlights())
	assert.Equal(t, 0, f.ActiveTimers())

	m.Seek(7001 / fs)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 7001 }))
	assert.Empty(t, m.Highlights())
}

func TestMoviePlayKeepsDisplayedFrameSpikes(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))
	defer m.Close()

	m.Seek(7000 / fs)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 7000 }))
	require.Equal(t, map[int]float64{1: 0.9}, m.Highlights())

	m.Play()
	f.Flush()
	assert.Equal(t, 7000, m.State().Displayed)
	assert.InDelta(t, 0.9, m.Highlights()[1], 1e-9)

	// from here on the ring decays like any observed spike
	f.Advance(250 * time.Millisecond)
	assert.InDelta(t, 0.45, m.Highlights()[1], 1e-9)
}

func TestMovieDropsStaleFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	g := newGate()
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, g))
	defer m.Close()

	staleBefore := testutil.ToFloat64(metrics.FramesStale)
	release := g.block(50)
	m.Seek(50 / fs)
	m.Seek(60 / fs)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 60 }))

	release()
	require.True(t, f.Await(wait, func() bool {
		return testutil.ToFloat64(metrics.FramesStale) >= staleBefore+1
	}))
	assert.Equal(t, 60, m.State().Displayed)
}

func TestMovieCoalescesPaintRequests(t *testing.T) {
	g := newGate()
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, g))
	defer m.Close()

	release := g.block(20)
	m.Play()
	f.Paint(time.Millisecond) // index 20, blocked
	f.Paint(time.Millisecond) // index 40, queued behind it
	f.Paint(time.Millisecond) // index 60, replaces 40
	assert.Equal(t, 60, m.State().Index)

	release()
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 60 }))
}

func TestMovieRecordingSwitchReleasesEverything(t *testing.T) {
	g := newGate()
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, g))
	defer m.Close()

	m.Play()
	f.Paint(5 * time.Millisecond)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 100 }))
	require.Equal(t, 1, f.PendingFrames())
	require.Equal(t, 1, f.ActiveTimers())

	release := g.block(200)
	f.Paint(5 * time.Millisecond) // index 200 in flight
	oldGen := m.State().Generation

	m.SetRecording(openRecording(t, nil))
	release()
	assert.Equal(t, 0, f.PendingFrames())
	assert.Equal(t, 0, f.ActiveTimers())

	st := m.State()
	assert.Equal(t, oldGen+1, st.Generation)
	assert.Equal(t, playback.Stopped, st.State)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 0 }))
	assert.Equal(t, 0.0, m.State().Time)
}

func TestMovieFetchErrorSurfacesAndClears(t *testing.T) {
	g := newGate()
	boom := errors.New("store unavailable")
	g.failWith(300, boom)
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, g))
	defer m.Close()

	m.Seek(300 / fs)
	require.True(t, f.Await(wait, func() bool { return m.LastError() != nil }))
	assert.ErrorIs(t, m.LastError(), boom)
	assert.Contains(t, m.State().LastError, "store unavailable")
	assert.Equal(t, 0, m.State().Displayed)

	m.Seek(301 / fs)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 301 }))
	assert.NoError(t, m.LastError())
}

func TestMovieCloseIsInert(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))

	m.Play()
	f.Paint(5 * time.Millisecond)
	require.True(t, f.Await(wait, func() bool { return m.State().Displayed == 100 }))

	m.Close()
	m.Close()
	assert.Equal(t, 0, f.PendingFrames())
	assert.Equal(t, 0, f.ActiveTimers())

	m.Play()
	m.Seek(1)
	m.SetRecording(openRecording(t, nil))
	assert.Equal(t, 0, f.PendingFrames())
	assert.Nil(t, m.Recording())
	assert.ErrorIs(t, m.SetSpeed(2), playback.ErrInvalidSpeed)
}

func TestMovieSettingsAndInspect(t *testing.T) {
	f := hosttest.NewFake(epoch)
	m := newMovie(t, f, openRecording(t, nil))
	defer m.Close()

	assert.ErrorIs(t, m.SetSettings(Settings{Colormap: "plasma", Contrast: 40}), ErrInvalidSettings)
	assert.ErrorIs(t, m.SetSettings(Settings{Colormap: "hot", Contrast: 101}), ErrInvalidSettings)
	changes := 0
	m.OnChange(func() { changes++ })
	require.NoError(t, m.SetSettings(Settings{Colormap: "hot", Contrast: 55}))
	assert.Equal(t, Settings{Colormap: "hot", Contrast: 55}, m.Settings())
	assert.Equal(t, 1, changes)

	sc := m.Scene(100, 100)
	assert.Equal(t, "hot", sc.Colormap)
	require.NotNil(t, sc.Normalize)

	// 2x2 grid of spacing 10 on a 100px canvas with 20px padding
	in, ok := m.Inspect(80, 20, 100, 100)
	require.True(t, ok)
	assert.Equal(t, 1, in.Channel)
	assert.Equal(t, 1.0, in.Value)
	assert.Equal(t, 10.0, in.X)

	_, ok = m.Inspect(50, 50, 100, 100)
	assert.False(t, ok)
}

func TestFrameSceneUsesExactSpikes(t *testing.T) {
	rec := openRecording(t, nil)
	r := render.New(render.DefaultConfig())
	sc, err := FrameScene(context.Background(), rec, r, 100, 64, 64, Settings{Colormap: "viridis", Contrast: 40}, 0.9)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{3: 0.9}, sc.Highlights)
	assert.Len(t, sc.Values, channels)

	_, err = FrameScene(context.Background(), rec, r, samples, 64, 64, Settings{}, 0.9)
	assert.ErrorIs(t, err, recording.ErrIndexOutOfRange)
}

func TestRegisteredViews(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	assert.Equal(t, []string{RatesViewType, MovieViewType}, reg.Names())

	f := hosttest.NewFake(epoch)
	deps := registry.Deps{Scheduler: f, Renderer: render.New(render.DefaultConfig()), Colormap: "grayscale", Contrast: 40}
	v, err := reg.Open(context.Background(), MovieViewType, movieGroup(t, nil), deps)
	require.NoError(t, err)
	movie, ok := v.(*Movie)
	require.True(t, ok)
	require.True(t, f.Await(wait, func() bool { return movie.State().Displayed == 0 }))
	movie.Close()

	d, err := synth.Generate(synth.Config{GridSize: 2, Spacing: 10, Samples: 400, SamplingFrequency: 1000, SpikeRate: 50, RatesBin: 100, Seed: 3})
	require.NoError(t, err)
	rg, err := synth.RatesFromSpikes(d).MemoryGroup()
	require.NoError(t, err)
	v, err = reg.Open(context.Background(), RatesViewType, rg, deps)
	require.NoError(t, err)
	assert.Equal(t, RatesViewType, v.Type())

	_, err = reg.Open(context.Background(), MovieViewType, rg, deps)
	assert.ErrorIs(t, err, recording.ErrMissingMetadata)
}

func TestRatesView(t *testing.T) {
	d, err := synth.Generate(synth.Config{GridSize: 2, Spacing: 10, Samples: 400, SamplingFrequency: 1000, SpikeRate: 50, SpikeAmplitude: 100, RatesBin: 100, Seed: 3})
	require.NoError(t, err)
	rates := synth.RatesFromSpikes(d)
	rg, err := rates.MemoryGroup()
	require.NoError(t, err)
	fr, err := recording.OpenFiringRates(context.Background(), rg)
	require.NoError(t, err)

	v := NewRatesView(fr, render.New(render.DefaultConfig()), "hot")
	img, err := v.Render(context.Background(), 1, 80, 80)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())

	// channel 0 sits at the top-left of the fitted grid
	in, ok, err := v.Inspect(context.Background(), 1, 20, 20, 100, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, in.Channel)
	assert.InDelta(t, float64(rates.Rates[1*4+0]), in.Rate, 1e-6)

	_, ok, err = v.Inspect(context.Background(), 1, 50, 50, 100, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.Render(context.Background(), 4, 80, 80)
	assert.ErrorIs(t, err, recording.ErrIndexOutOfRange)
}
