// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/meamovie/internal/host"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/playback"
	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/viewer"
)

// errBadRequest marks malformed query parameters or bodies.
var errBadRequest = errors.New("bad request")

// problem is the JSON error body.
type problem struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, problem{Error: code, Detail: detail, RequestID: log.RequestIDFromContext(r.Context())})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Str(log.FieldPath, r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	writeProblem(w, r, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, recording.ErrIndexOutOfRange):
		return http.StatusNotFound, "index_out_of_range"
	case errors.Is(err, errBadRequest),
		errors.Is(err, viewer.ErrInvalidSettings),
		errors.Is(err, playback.ErrInvalidSpeed):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, host.ErrStopped):
		return http.StatusServiceUnavailable, "view_stopped"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request_cancelled"
	case errors.Is(err, recording.ErrMissingMetadata),
		errors.Is(err, recording.ErrMissingDataset),
		errors.Is(err, recording.ErrInvalidMetadata),
		errors.Is(err, recording.ErrInvalidDataset):
		return http.StatusInternalServerError, "invalid_recording"
	default:
		return http.StatusBadGateway, "store_error"
	}
}
