// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", errBadRequest, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, key, raw)
	}
	return v, nil
}

// finiteFloat rejects NaN and infinities.
func finiteFloat(r *http.Request, key string) (float64, error) {
	v, err := queryFloat(r, key)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", errBadRequest, key)
	}
	return v, nil
}

func parseIndex(raw, key string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadRequest, key, raw)
	}
	return v, nil
}

func pathIndex(r *http.Request, key string) (int, error) {
	return parseIndex(chi.URLParam(r, key), key)
}

func queryIndex(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", errBadRequest, key)
	}
	return parseIndex(raw, key)
}

// canvas reads w and h, falling back to the server defaults.
func (s *Server) canvas(r *http.Request) (width, height int, err error) {
	width, height = s.cfg.Width, s.cfg.Height
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *int
	}{{"w", &width}, {"h", &height}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > MaxCanvas {
			return 0, 0, fmt.Errorf("%w: %s must be an integer in [1, %d]", errBadRequest, p.key, MaxCanvas)
		}
		*p.dst = v
	}
	return width, height, nil
}
