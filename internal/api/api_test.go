// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/playback"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/synth"
	"github.com/ManuGH/meamovie/internal/viewer"
)

var synthConfig = synth.Config{
	GridSize:          2,
	Spacing:           10,
	Samples:           400,
	SamplingFrequency: 1000,
	SpikeRate:         50,
	SpikeAmplitude:    100,
	RatesBin:          100,
	Seed:              3,
}

type fixture struct {
	srv    *httptest.Server
	loop   *host.Loop
	movie  *viewer.Movie
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *fixture) stopLoop() {
	f.cancel()
	<-f.done
}

func newFixture(t *testing.T, withRates bool) *fixture {
	t.Helper()
	d, err := synth.Generate(synthConfig)
	require.NoError(t, err)
	grp, err := d.MemoryGroup()
	require.NoError(t, err)
	rec, err := recording.Open(context.Background(), grp, recording.WithURI("mem://api"))
	require.NoError(t, err)

	renderer := render.New(render.DefaultConfig())
	loop := host.NewLoop(host.LoopOptions{FrameInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	movie := viewer.NewMovie(loop, renderer, rec, viewer.MovieOptions{
		Overlay:  overlay.DefaultConfig(),
		Settings: viewer.Settings{Colormap: "grayscale", Contrast: 40},
	})
	require.Eventually(t, func() bool {
		var (
			shown int
			hit   bool
		)
		err := loop.Call(context.Background(), func() {
			shown = movie.State().Displayed
			_, hit = movie.Inspect(20, 20, 100, 100)
		})
		return err == nil && shown == 0 && hit
	}, 2*time.Second, 5*time.Millisecond)

	deps := Deps{Caller: loop, Movie: movie}
	if withRates {
		rg, err := synth.RatesFromSpikes(d).MemoryGroup()
		require.NoError(t, err)
		fr, err := recording.OpenFiringRates(context.Background(), rg)
		require.NoError(t, err)
		deps.Rates = viewer.NewRatesView(fr, renderer, "hot")
	}

	f := &fixture{
		srv:    httptest.NewServer(New(Config{Width: 100, Height: 100}, deps).Handler()),
		loop:   loop,
		movie:  movie,
		cancel: cancel,
		done:   done,
	}
	t.Cleanup(func() {
		f.srv.Close()
		_ = loop.Call(context.Background(), movie.Close)
		f.stopLoop()
	})
	return f
}

func do(t *testing.T, f *fixture, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRecordingMetadata(t *testing.T) {
	f := newFixture(t, false)
	resp := do(t, f, http.MethodGet, "/api/recording", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[RecordingResponse](t, resp)
	assert.Equal(t, "mem://api", got.URI)
	assert.Equal(t, 400, got.Metadata.SampleCount)
	assert.Equal(t, 4, got.Metadata.ChannelCount)
	assert.InDelta(t, 0.4, got.Duration, 1e-9)
	assert.Equal(t, f.movie.ID(), got.ViewID)
}

func TestPlaybackControls(t *testing.T) {
	f := newFixture(t, false)

	st := decode[viewer.State](t, do(t, f, http.MethodGet, "/api/playback", ""))
	assert.Equal(t, playback.Stopped, st.State)
	assert.Equal(t, 1.0, st.Speed)

	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/speed?s=2", ""))
	assert.Equal(t, 2.0, st.Speed)

	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/seek?t=0.1", ""))
	assert.InDelta(t, 0.1, st.Time, 1e-9)

	// seeks clamp to the recording
	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/seek?t=99", ""))
	assert.InDelta(t, 0.4, st.Time, 1e-9)

	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/seek?t=0", ""))
	assert.Equal(t, 0.0, st.Time)
	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/play", ""))
	assert.Equal(t, playback.Playing, st.State)
	st = decode[viewer.State](t, do(t, f, http.MethodPost, "/api/playback/pause", ""))
	assert.Equal(t, playback.Stopped, st.State)
}

func TestPlaybackRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		path string
		code int
	}{
		{"/api/playback/speed?s=0", http.StatusBadRequest},
		{"/api/playback/speed?s=-1", http.StatusBadRequest},
		{"/api/playback/speed", http.StatusBadRequest},
		{"/api/playback/seek?t=soon", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := do(t, f, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, "invalid_request", decode[problem](t, resp).Error)
		})
	}

	resp := do(t, f, http.MethodGet, "/api/playback/play", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestViewSettings(t *testing.T) {
	f := newFixture(t, false)

	got := decode[viewer.Settings](t, do(t, f, http.MethodGet, "/api/view/settings", ""))
	assert.Equal(t, viewer.Settings{Colormap: "grayscale", Contrast: 40}, got)

	resp := do(t, f, http.MethodPut, "/api/view/settings", `{"contrast":70}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, viewer.Settings{Colormap: "grayscale", Contrast: 70}, decode[viewer.Settings](t, resp))

	for _, body := range []string{`{"colormap":"plasma"}`, `{"contrast":101}`, `{"gamma":2}`, `not json`} {
		resp := do(t, f, http.MethodPut, "/api/view/settings", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	got = decode[viewer.Settings](t, do(t, f, http.MethodGet, "/api/view/settings", ""))
	assert.Equal(t, 70.0, got.Contrast)
}

func TestFramePNG(t *testing.T) {
	f := newFixture(t, false)

	resp := do(t, f, http.MethodGet, "/api/frame.png?w=64&h=48", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "0", resp.Header.Get("X-Frame-Index"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	for _, q := range []string{"w=0", "h=-3", "w=big", "w=5000"} {
		resp := do(t, f, http.MethodGet, "/api/frame.png?"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestExactFramePNG(t *testing.T) {
	f := newFixture(t, false)

	resp := do(t, f, http.MethodGet, "/api/frames/399.png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	resp = do(t, f, http.MethodGet, "/api/frames/400.png", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "index_out_of_range", decode[problem](t, resp).Error)

	resp = do(t, f, http.MethodGet, "/api/frames/first.png", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInspect(t *testing.T) {
	f := newFixture(t, false)

	resp := do(t, f, http.MethodGet, "/api/inspect?x=20&y=20&w=100&h=100", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	in := decode[InspectResponse](t, resp)
	assert.Equal(t, 0, in.Channel)
	assert.NotNil(t, in.Value)

	resp = do(t, f, http.MethodGet, "/api/inspect?x=50&y=50&w=100&h=100", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, f, http.MethodGet, "/api/inspect?x=NaN&y=1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRatesRoutes(t *testing.T) {
	f := newFixture(t, true)

	resp := do(t, f, http.MethodGet, "/api/rates/1.png?w=80&h=80", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())

	resp = do(t, f, http.MethodGet, "/api/rates/4.png", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, f, http.MethodGet, "/api/rates/inspect?frame=1&x=20&y=20&w=100&h=100", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[viewer.RatesInspection](t, resp).Channel)

	resp = do(t, f, http.MethodGet, "/api/rates/inspect?x=20&y=20", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRatesRoutesWithoutView(t *testing.T) {
	f := newFixture(t, false)
	resp := do(t, f, http.MethodGet, "/api/rates/1.png", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no_rates_view", decode[problem](t, resp).Error)
}

func TestStoppedLoopAnswersUnavailable(t *testing.T) {
	f := newFixture(t, false)
	f.stopLoop()

	resp := do(t, f, http.MethodGet, "/api/playback", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "view_stopped", decode[problem](t, resp).Error)
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusOK, do(t, f, http.MethodGet, "/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, f, http.MethodGet, "/readyz", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, f, http.MethodGet, "/metrics", "").StatusCode)
}

func TestNoMovie(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, Deps{}).Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/api/playback")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClassify(t *testing.T) {
	status, code := classify(&recording.IndexOutOfRangeError{Index: 5, Len: 4})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "index_out_of_range", code)

	status, _ = classify(io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = classify(&recording.MissingMetadataError{Attribute: "num_channels"})
	assert.Equal(t, http.StatusInternalServerError, status)
}
