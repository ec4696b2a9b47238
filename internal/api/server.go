// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes a running view over HTTP.
//
// Handlers never touch view state directly: every read or mutation of the
// movie runs on the host loop through host.Caller, and rendering happens on
// the request goroutine from a captured scene.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/meamovie/internal/api/middleware"
	"github.com/ManuGH/meamovie/internal/health"
	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/viewer"
)

// MaxCanvas bounds the width and height a client may request.
const MaxCanvas = 4096

// Config holds server settings.
type Config struct {
	// Width and Height are used when a request omits w or h.
	Width  int
	Height int
	Stack  middleware.StackConfig
}

// Deps are the collaborators a Server reads from. Movie and Rates are
// optional; their routes answer 404 when absent.
type Deps struct {
	Caller host.Caller
	Movie  *viewer.Movie
	Rates  *viewer.RatesView
	Health *health.Manager
}

// Server serves the HTTP API.
type Server struct {
	cfg    Config
	caller host.Caller
	movie  *viewer.Movie
	rates  *viewer.RatesView
	health *health.Manager
	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{
		cfg:    cfg,
		caller: deps.Caller,
		movie:  deps.Movie,
		rates:  deps.Rates,
		health: deps.Health,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(s.cfg.Stack)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireMovie)
			r.Get("/recording", s.handleRecording)
			r.Get("/playback", s.handlePlayback)
			r.Post("/playback/play", s.handlePlay)
			r.Post("/playback/pause", s.handlePause)
			r.Post("/playback/seek", s.handleSeek)
			r.Post("/playback/speed", s.handleSpeed)
			r.Get("/view/settings", s.handleGetSettings)
			r.Put("/view/settings", s.handlePutSettings)
			r.Get("/frame.png", s.handleFrame)
			r.Get("/frames/{index}.png", s.handleExactFrame)
			r.Get("/inspect", s.handleInspect)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.requireRates)
			r.Get("/rates/{frame}.png", s.handleRatesFrame)
			r.Get("/rates/inspect", s.handleRatesInspect)
		})
	})
	return r
}

func (s *Server) requireMovie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.movie == nil || s.caller == nil {
			writeProblem(w, r, http.StatusNotFound, "no_movie", "no movie view is open")
			return
		}
		next.ServeHTTP(w, r.WithContext(log.ContextWithViewID(r.Context(), s.movie.ID())))
	})
}

func (s *Server) requireRates(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rates == nil {
			writeProblem(w, r, http.StatusNotFound, "no_rates_view", "no firing-rate view is configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}
