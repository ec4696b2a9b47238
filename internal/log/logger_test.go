// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewIDFromContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), viewIDKey, 42)
	if got := ViewIDFromContext(ctx); got != "" {
		t.Errorf("ViewIDFromContext() = %q, want empty", got)
	}
	if got := ViewIDFromContext(nil); got != "" { //nolint:staticcheck // nil context is part of the contract
		t.Errorf("ViewIDFromContext(nil) = %q, want empty", got)
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithViewID(ctx, "view-9")

	l := WithComponentFromContext(ctx, "viewer")
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		FieldRequestID: "req-1",
		FieldViewID:    "view-9",
		FieldComponent: "viewer",
		"service":      "test",
		"version":      "v0",
	} {
		if entry[key] != want {
			t.Errorf("field %s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestWithContextWithoutFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithContext(context.Background(), WithComponent("x"))
	l.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if _, ok := entry[FieldRequestID]; ok {
		t.Errorf("unexpected %s field", FieldRequestID)
	}
}
