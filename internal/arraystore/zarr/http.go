// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/metrics"
	"github.com/ManuGH/meamovie/internal/resilience"
	"github.com/ManuGH/meamovie/internal/telemetry"
)

// HTTPOptions configures an HTTPStore.
type HTTPOptions struct {
	Timeout          time.Duration
	RateLimit        rate.Limit
	Burst            int
	Retries          int
	Backoff          time.Duration
	MaxBackoff       time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultHTTPRetries    = 2
	defaultHTTPBackoff    = 100 * time.Millisecond
	defaultHTTPMaxBackoff = 2 * time.Second
	defaultHTTPRateLimit  = 200
	defaultHTTPBurst      = 50
)

func normalizeHTTPOptions(opts HTTPOptions) HTTPOptions {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	// negative disables retries
	switch {
	case opts.Retries == 0:
		opts.Retries = defaultHTTPRetries
	case opts.Retries < 0:
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultHTTPBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultHTTPMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultHTTPRateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultHTTPBurst
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	return opts
}

// HTTPStore reads a Zarr hierarchy served over plain HTTP GETs (static file
// servers, object storage gateways).
type HTTPStore struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	opts    HTTPOptions
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	key  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("zarr: GET %s: status %d", e.key, e.code)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// NewHTTPStore returns a store rooted at baseURL.
func NewHTTPStore(baseURL string, opts HTTPOptions) (*HTTPStore, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("zarr: invalid store URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("zarr: store URL must be http(s), got %q", baseURL)
	}
	nopts := normalizeHTTPOptions(opts)
	return &HTTPStore{
		base: u,
		client: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: otelhttp.NewTransport(nopts.Transport),
		},
		limiter: rate.NewLimiter(nopts.RateLimit, nopts.Burst),
		breaker: resilience.NewCircuitBreaker("zarr_http", nopts.BreakerThreshold, nopts.BreakerReset,
			resilience.WithFailureFilter(countsAsOutage)),
		opts: nopts,
	}, nil
}

// A missing key or a client error is an answer from a healthy server.
func countsAsOutage(err error) bool {
	if IsNotFound(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	return true
}

// Get implements Store. Transient failures are retried with exponential
// backoff; missing keys and client errors are returned at once.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := telemetry.Tracer("meamovie.zarr").Start(ctx, "zarr.http.get", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(telemetry.ChunkAttributes("http", "", key)...)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.Backoff
	eb.MaxInterval = s.opts.MaxBackoff

	start := time.Now()
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		var body []byte
		err := s.breaker.Execute(func() error {
			var ferr error
			body, ferr = s.fetch(ctx, key)
			return ferr
		})
		if err != nil && !s.retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(s.opts.Retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger := log.WithComponent("zarr")
			logger.Debug().Err(err).
				Str(log.FieldChunk, key).
				Dur("retry_in", next).
				Msg("retrying store read")
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	switch {
	case err == nil:
		metrics.ObserveStoreChunk("http", metrics.ResultSuccess, time.Since(start))
		telemetry.End(span, nil)
		return data, nil
	case IsNotFound(err):
		metrics.ObserveStoreChunk("http", metrics.ResultMissing, time.Since(start))
		telemetry.End(span, nil)
		return nil, err
	default:
		metrics.ObserveStoreChunk("http", metrics.ResultError, time.Since(start))
		telemetry.End(span, err)
		return nil, err
	}
}

func (s *HTTPStore) retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || IsNotFound(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	return true
}

func (s *HTTPStore) fetch(ctx context.Context, key string) ([]byte, error) {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(key, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		// object stores answer 403 for missing keys without list permission
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &KeyNotFoundError{Key: key}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode, key: key}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zarr: read body %s: %w", key, err)
	}
	return data, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (s *HTTPStore) BreakerState() resilience.State {
	return s.breaker.State()
}

// OpenHTTP opens the group at path inside a Zarr hierarchy served at baseURL.
func OpenHTTP(ctx context.Context, baseURL, path string, opts HTTPOptions) (*Group, error) {
	st, err := NewHTTPStore(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return Open(ctx, st, path)
}
