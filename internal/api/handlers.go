// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/ManuGH/meamovie/internal/overlay"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/viewer"
)

// maxSettingsBody caps PUT /api/view/settings payloads.
const maxSettingsBody = 4 << 10

// RecordingResponse describes the open recording.
type RecordingResponse struct {
	URI      string             `json:"uri,omitempty"`
	Metadata recording.Metadata `json:"metadata"`
	EndTime  float64            `json:"endTimeSec"`
	Duration float64            `json:"durationSec"`
	ViewID   string             `json:"viewId"`
}

// InspectResponse is the electrode under the pointer. Value is null until a
// frame has been displayed.
type InspectResponse struct {
	Channel int      `json:"channel"`
	Value   *float64 `json:"value"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
}

// onLoop runs fn against the movie on the host loop.
func (s *Server) onLoop(ctx context.Context, fn func(m *viewer.Movie)) error {
	return s.caller.Call(ctx, func() { fn(s.movie) })
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	var resp RecordingResponse
	err := s.onLoop(r.Context(), func(m *viewer.Movie) {
		rec := m.Recording()
		resp.ViewID = m.ID()
		if rec == nil {
			return
		}
		meta := rec.Metadata()
		resp.URI, resp.Metadata = rec.URI(), meta
		resp.EndTime, resp.Duration = meta.EndTime(), meta.Duration()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	s.playbackAction(w, r, func(*viewer.Movie) error { return nil })
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.playbackAction(w, r, func(m *viewer.Movie) error { m.Play(); return nil })
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.playbackAction(w, r, func(m *viewer.Movie) error { m.Pause(); return nil })
}

// handleSeek accepts any number for t; the clock clamps it and NaN seeks to
// the start.
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	t, err := queryFloat(r, "t")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.playbackAction(w, r, func(m *viewer.Movie) error { m.Seek(t); return nil })
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	speed, err := queryFloat(r, "s")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.playbackAction(w, r, func(m *viewer.Movie) error { return m.SetSpeed(speed) })
}

// playbackAction applies fn and answers with the resulting state.
func (s *Server) playbackAction(w http.ResponseWriter, r *http.Request, fn func(*viewer.Movie) error) {
	var (
		state  viewer.State
		actErr error
	)
	err := s.onLoop(r.Context(), func(m *viewer.Movie) {
		if actErr = fn(m); actErr == nil {
			state = m.State()
		}
	})
	if err == nil {
		err = actErr
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	var settings viewer.Settings
	if err := s.onLoop(r.Context(), func(m *viewer.Movie) { settings = m.Settings() }); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handlePutSettings merges the body over the current settings, so a client
// may send only the field it changes.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read body: %v", errBadRequest, err))
		return
	}
	if len(body) > maxSettingsBody {
		writeError(w, r, fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxSettingsBody))
		return
	}

	var (
		settings viewer.Settings
		applyErr error
	)
	err = s.onLoop(r.Context(), func(m *viewer.Movie) {
		next := m.Settings()
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&next); err != nil {
			applyErr = fmt.Errorf("%w: %v", errBadRequest, err)
			return
		}
		if applyErr = m.SetSettings(next); applyErr == nil {
			settings = m.Settings()
		}
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleFrame renders what the view currently shows.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	width, height, err := s.canvas(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var (
		sc       render.Scene
		renderer *render.Renderer
		state    viewer.State
	)
	err = s.onLoop(r.Context(), func(m *viewer.Movie) {
		sc, renderer, state = m.Scene(width, height), m.Renderer(), m.State()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Frame-Index", strconv.Itoa(state.Displayed))
	writePNG(w, r, renderer.Render(r.Context(), sc))
}

// handleExactFrame renders one sample index with that index's spikes at peak
// opacity, independent of playback.
func (s *Server) handleExactFrame(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, r, err)
		return
	}
	width, height, err := s.canvas(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		rec      *recording.Recording
		renderer *render.Renderer
		settings viewer.Settings
		peak     float64
	)
	err = s.onLoop(r.Context(), func(m *viewer.Movie) {
		rec, renderer, settings = m.Recording(), m.Renderer(), m.Settings()
		peak = m.OverlayConfig().PeakOpacity
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeProblem(w, r, http.StatusNotFound, "no_recording", "no recording is open")
		return
	}
	if peak <= 0 {
		peak = overlay.DefaultConfig().PeakOpacity
	}

	sc, err := viewer.FrameScene(r.Context(), rec, renderer, index, width, height, settings, peak)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Frame-Index", strconv.Itoa(index))
	writePNG(w, r, renderer.Render(r.Context(), sc))
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	x, y, width, height, err := s.pointer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var (
		in  viewer.Inspection
		hit bool
	)
	if err := s.onLoop(r.Context(), func(m *viewer.Movie) { in, hit = m.Inspect(x, y, width, height) }); err != nil {
		writeError(w, r, err)
		return
	}
	if !hit {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	resp := InspectResponse{Channel: in.Channel, X: in.X, Y: in.Y}
	if !math.IsNaN(in.Value) {
		v := in.Value
		resp.Value = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRatesFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := pathIndex(r, "frame")
	if err != nil {
		writeError(w, r, err)
		return
	}
	width, height, err := s.canvas(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	img, err := s.rates.Render(r.Context(), frame, width, height)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePNG(w, r, img)
}

func (s *Server) handleRatesInspect(w http.ResponseWriter, r *http.Request) {
	frame, err := queryIndex(r, "frame")
	if err != nil {
		writeError(w, r, err)
		return
	}
	x, y, width, height, err := s.pointer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, hit, err := s.rates.Inspect(r.Context(), frame, x, y, width, height)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !hit {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) pointer(r *http.Request) (x, y float64, width, height int, err error) {
	if x, err = finiteFloat(r, "x"); err != nil {
		return
	}
	if y, err = finiteFloat(r, "y"); err != nil {
		return
	}
	width, height, err = s.canvas(r)
	return
}

// writePNG encodes before writing so an encoder failure can still become a
// JSON error.
func writePNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
