// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	viewIDKey    ctxKey = "view_id"
)

// correlation maps context keys to the log fields WithContext emits.
var correlation = []struct {
	key   ctxKey
	field string
}{
	{requestIDKey, FieldRequestID},
	{viewIDKey, FieldViewID},
}

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithViewID tags work done on behalf of one open view.
func ContextWithViewID(ctx context.Context, id string) context.Context {
	return withValue(ctx, viewIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func ViewIDFromContext(ctx context.Context) string { return stringValue(ctx, viewIDKey) }

// WithContext adds the correlation fields present in ctx to logger. The
// logger is returned unchanged when ctx carries none.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	var b *zerolog.Context
	for _, c := range correlation {
		v := stringValue(ctx, c.key)
		if v == "" {
			continue
		}
		if b == nil {
			lc := logger.With()
			b = &lc
		}
		*b = b.Str(c.field, v)
	}
	if b == nil {
		return logger
	}
	return b.Logger()
}

func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
