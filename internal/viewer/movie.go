// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package viewer composes recordings, playback, overlay and rendering into
// views.
//
// A Movie belongs to one host loop. Its methods must run on that loop; other
// goroutines reach it through host.Caller. Store reads run on worker
// goroutines and post their results back.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/meamovie/internal/colormap"
	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/metrics"
	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/playback"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
)

// MovieViewType is the view type handled by Movie.
const MovieViewType = "realtime512.MEAMovie"

// ErrInvalidSettings is returned by SetSettings for an unknown colormap or a
// contrast outside [0,100].
var ErrInvalidSettings = errors.New("invalid view settings")

// Settings are the user-adjustable display parameters.
type Settings struct {
	Colormap string  `json:"colormap"`
	Contrast float64 `json:"contrast"`
}

// Validate checks the colormap name and the contrast range.
func (s Settings) Validate() error {
	if _, ok := colormap.ByName(s.Colormap); !ok {
		return fmt.Errorf("%w: unknown colormap %q (have %v)", ErrInvalidSettings, s.Colormap, colormap.Names())
	}
	if math.IsNaN(s.Contrast) || s.Contrast < 0 || s.Contrast > 100 {
		return fmt.Errorf("%w: contrast %v outside [0,100]", ErrInvalidSettings, s.Contrast)
	}
	return nil
}

// MovieOptions configures a Movie.
type MovieOptions struct {
	Speed    float64
	Overlay  overlay.Config
	Settings Settings
}

// State is a snapshot of the playback position.
type State struct {
	ViewID     string         `json:"viewId"`
	State      playback.State `json:"state"`
	Speed      float64        `json:"speed"`
	Time       float64        `json:"time"`
	Index      int            `json:"index"`
	Displayed  int            `json:"displayed"`
	Generation uint64         `json:"generation"`
	LastError  string         `json:"lastError,omitempty"`
}

// Inspection describes the electrode under a pointer.
type Inspection struct {
	Channel int     `json:"channel"`
	Value   float64 `json:"value"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Movie plays one recording at a time.
type Movie struct {
	id       string
	sched    host.Scheduler
	renderer *render.Renderer
	opts     MovieOptions
	logger   zerolog.Logger

	rec     *recording.Recording
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	driver  *playback.Driver
	tracker *overlay.Tracker

	layout []recording.Point

	seq      uint64
	inflight bool
	wanted   int
	seeking  bool

	frame     []int16
	displayed int
	lastErr   error
	settings  Settings

	onChange []func()
	closed   bool
}

// NewMovie creates a view for rec. It may be called from any goroutine; once
// it returns, the view belongs to the scheduler's loop.
func NewMovie(sched host.Scheduler, renderer *render.Renderer, rec *recording.Recording, opts MovieOptions) *Movie {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if opts.Settings.Colormap == "" {
		opts.Settings.Colormap = colormap.Grayscale
	}
	id := uuid.NewString()
	m := &Movie{
		id:        id,
		sched:     sched,
		renderer:  renderer,
		opts:      opts,
		settings:  opts.Settings,
		displayed: -1,
		logger:    log.WithComponent("viewer").With().Str(log.FieldViewID, id).Logger(),
	}
	m.SetRecording(rec)
	return m
}

// Type implements registry.View.
func (m *Movie) Type() string { return MovieViewType }

// ID returns the view instance id.
func (m *Movie) ID() string { return m.id }

// Recording returns the current recording.
func (m *Movie) Recording() *recording.Recording { return m.rec }

// Renderer returns the renderer used for scenes.
func (m *Movie) Renderer() *render.Renderer { return m.renderer }

// OnChange registers fn to run whenever the picture may have changed.
func (m *Movie) OnChange(fn func()) { m.onChange = append(m.onChange, fn) }

// SetRecording switches to rec. The previous recording's paint callback,
// decay timer and in-flight fetches are all released.
func (m *Movie) SetRecording(rec *recording.Recording) {
	if m.closed {
		return
	}
	speed := m.opts.Speed
	if m.driver != nil {
		speed = m.driver.Clock().Speed()
	}
	m.teardown()
	if rec == nil {
		return
	}

	m.rec = rec
	m.ctx, m.cancel = context.WithCancel(context.Background())
	meta := rec.Metadata()

	clock := playback.NewClock(m.sched, meta.StartTime, meta.EndTime(), playback.WithSpeed(speed))
	m.driver = playback.NewDriver(clock, m.sched)
	m.driver.OnTime(m.showTime)
	m.driver.OnState(m.stateChanged)

	m.tracker = overlay.New(m.sched, m.opts.Overlay)
	m.tracker.OnChange(m.changed)

	m.logger.Info().
		Str(log.FieldEvent, "viewer.recording_set").
		Str(log.FieldRecording, rec.URI()).
		Uint64(log.FieldGeneration, m.gen).
		Msg("recording attached")

	m.fetchLayout()
	m.want(0, true)
}

func (m *Movie) teardown() {
	m.gen++
	if m.driver != nil {
		m.driver.Close()
		m.driver = nil
	}
	if m.tracker != nil {
		m.tracker.Close()
		m.tracker = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.rec = nil
	m.layout = nil
	m.frame = nil
	m.displayed = -1
	m.inflight = false
	m.lastErr = nil
}

// Close releases everything and makes the view inert.
func (m *Movie) Close() {
	if m.closed {
		return
	}
	m.teardown()
	m.closed = true
	m.logger.Info().Str(log.FieldEvent, "viewer.closed").Msg("view closed")
}

// Play starts playback.
func (m *Movie) Play() {
	if m.driver != nil {
		m.driver.Play()
	}
}

// Pause stops playback.
func (m *Movie) Pause() {
	if m.driver != nil {
		m.driver.Pause()
	}
}

// Seek jumps to data time t, clamped to the recording.
func (m *Movie) Seek(t float64) {
	if m.driver == nil {
		return
	}
	m.seeking = true
	m.driver.Seek(t)
	m.seeking = false
}

// SetSpeed changes the playback speed.
func (m *Movie) SetSpeed(s float64) error {
	if m.driver == nil {
		return playback.ErrInvalidSpeed
	}
	return m.driver.SetSpeed(s)
}

// Settings returns the display settings.
func (m *Movie) Settings() Settings { return m.settings }

// SetSettings validates and applies display settings.
func (m *Movie) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.settings = s
	m.changed()
	return nil
}

// SetOverlayConfig applies new overlay constants to the live tracker.
func (m *Movie) SetOverlayConfig(cfg overlay.Config) {
	m.opts.Overlay = cfg
	if m.tracker != nil {
		m.tracker.SetConfig(cfg)
	}
}

// SetRenderer swaps the renderer used for scenes and hit-testing.
func (m *Movie) SetRenderer(r *render.Renderer) {
	if r == nil {
		return
	}
	m.renderer = r
	m.changed()
}

// OverlayConfig returns the overlay constants in effect.
func (m *Movie) OverlayConfig() overlay.Config { return m.opts.Overlay }

// State returns a snapshot of the playback state.
func (m *Movie) State() State {
	st := State{ViewID: m.id, State: playback.Stopped, Displayed: m.displayed, Generation: m.gen, Index: m.wanted}
	if m.driver != nil {
		c := m.driver.Clock()
		st.State, st.Speed, st.Time = c.State(), c.Speed(), c.Time()
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// LastError returns the most recent fetch failure, cleared by the next
// successful frame.
func (m *Movie) LastError() error { return m.lastErr }

// Highlights returns the current spike overlay.
func (m *Movie) Highlights() map[int]float64 {
	if m.tracker == nil {
		return nil
	}
	return m.tracker.Highlights()
}

// Scene captures what should be drawn now. The result does not alias view
// state and can be rendered off the loop.
func (m *Movie) Scene(width, height int) render.Scene {
	sc := render.Scene{
		Width:      width,
		Height:     height,
		Colormap:   m.settings.Colormap,
		Coords:     m.layout,
		Highlights: m.Highlights(),
	}
	if m.rec != nil && m.frame != nil {
		meta := m.rec.Metadata()
		sc.Values = toFloats(m.frame)
		sc.Normalize = render.ContrastNormalizer(statsOf(meta), m.settings.Contrast, m.renderer.Config())
	}
	return sc
}

// Inspect hit-tests (x, y) on a width×height canvas against the displayed
// frame.
func (m *Movie) Inspect(x, y float64, width, height int) (Inspection, bool) {
	ch, ok := m.renderer.HitTest(m.layout, width, height, x, y)
	if !ok {
		return Inspection{}, false
	}
	in := Inspection{Channel: ch, Value: math.NaN(), X: m.layout[ch].X, Y: m.layout[ch].Y}
	if ch < len(m.frame) {
		in.Value = float64(m.frame[ch])
	}
	return in, true
}

func (m *Movie) showTime(t float64) {
	if m.rec == nil {
		return
	}
	m.want(m.rec.TimeToIndex(t), m.seeking || !m.driver.Clock().Playing())
}

func (m *Movie) stateChanged(s playback.State) {
	if m.tracker == nil {
		return
	}
	playing := s == playback.Playing
	m.tracker.SetPlaying(playing)
	// the displayed frame keeps its overlay across the mode switch
	if m.displayed >= 0 {
		m.tracker.Observe(m.rec.SpikingChannels(m.displayed), playing)
	}
}

// want asks for index. Paint-driven requests coalesce behind the fetch in
// flight; urgent ones (seeks, initial frame) supersede it.
func (m *Movie) want(index int, urgent bool) {
	m.wanted = index
	if m.inflight && !urgent {
		return
	}
	if !m.inflight && index == m.displayed && m.frame != nil {
		return
	}
	m.issue(index)
}

func (m *Movie) issue(index int) {
	m.seq++
	seq, gen, rec, ctx := m.seq, m.gen, m.rec, m.ctx
	m.inflight = true
	go func() {
		values, err := rec.Frame(ctx, index)
		m.sched.Post(func() { m.applyFrame(gen, seq, index, values, err) })
	}()
}

func (m *Movie) applyFrame(gen, seq uint64, index int, values []int16, err error) {
	if m.closed || gen != m.gen || seq != m.seq {
		metrics.IncFramesStale()
		return
	}
	m.inflight = false
	if err != nil {
		m.lastErr = err
		m.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "frame.fetch_failed").
			Int(log.FieldIndex, index).
			Msg("frame fetch failed")
	} else {
		m.lastErr = nil
		m.frame = values
		m.displayed = index
		metrics.IncFramesApplied()
		// frame and overlay change together
		m.tracker.Observe(m.rec.SpikingChannels(index), m.driver.Clock().Playing())
		m.changed()
	}
	if m.wanted != index {
		m.issue(m.wanted)
	}
}

func (m *Movie) fetchLayout() {
	gen, rec, ctx := m.gen, m.rec, m.ctx
	go func() {
		pts, err := rec.ElectrodeLayout(ctx)
		m.sched.Post(func() {
			if m.closed || gen != m.gen {
				return
			}
			if err != nil {
				m.lastErr = err
				m.logger.Error().
					Err(err).
					Str(log.FieldEvent, "layout.fetch_failed").
					Msg("electrode layout unavailable")
				return
			}
			m.layout = pts
			m.changed()
		})
	}()
}

func (m *Movie) changed() {
	for _, fn := range m.onChange {
		fn()
	}
}

func statsOf(meta recording.Metadata) render.Stats {
	return render.Stats{Min: meta.DataMin, Max: meta.DataMax, Median: meta.DataMedian}
}

func toFloats(in []int16) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
