// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com/data.zarr", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{":8080", false},
		{"127.0.0.1:0", false},
		{"[::1]:9000", false},
		{"8080", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := New()
			v.ListenAddr("api.listen", tt.value)
			if v.IsValid() == tt.wantErr {
				t.Errorf("ListenAddr(%q) valid=%v, wantErr=%v", tt.value, v.IsValid(), tt.wantErr)
			}
		})
	}
}

func TestValidator_Numeric(t *testing.T) {
	v := New()
	v.Range("a", 5, 1, 10)
	v.FloatRange("b", 0.5, 0, 1)
	v.PositiveFloat("c", 2)
	v.DurationRange("d", time.Second, time.Millisecond, time.Minute)
	v.Positive("e", 1)
	v.NonNegative("f", 0)
	if !v.IsValid() {
		t.Fatalf("unexpected errors: %v", v.Err())
	}

	v.Range("a", 11, 1, 10)
	v.FloatRange("b", math.NaN(), 0, 1)
	v.PositiveFloat("c", math.Inf(1))
	v.DurationRange("d", 0, time.Millisecond, time.Minute)
	v.Positive("e", 0)
	v.NonNegative("f", -1)

	var verr ValidationError
	if !errors.As(v.Err(), &verr) {
		t.Fatalf("Err() = %T, want ValidationError", v.Err())
	}
	got := strings.Join(verr.Fields(), ",")
	if got != "a,b,c,d,e,f" {
		t.Errorf("fields = %s", got)
	}
}

func TestValidator_Directory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing", dir, false},
		{"empty", "", true},
		{"missing", filepath.Join(dir, "nope"), true},
		{"file", file, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Directory("store.path", tt.path)
			if v.IsValid() == tt.wantErr {
				t.Errorf("Directory(%q) valid=%v, wantErr=%v", tt.path, v.IsValid(), tt.wantErr)
			}
		})
	}
}

func TestValidator_OneOfAndCustom(t *testing.T) {
	v := New()
	v.OneOf("kind", "dir", []string{"dir", "http"})
	v.NotEmpty("name", "x")
	v.Custom("color", "#fff", func(any) error { return nil })
	if !v.IsValid() {
		t.Fatalf("unexpected errors: %v", v.Err())
	}

	v.OneOf("kind", "s3", []string{"dir", "http"})
	v.NotEmpty("name", "  ")
	v.Custom("color", "red", func(any) error { return errors.New("bad color") })
	if n := len(v.Errors()); n != 3 {
		t.Fatalf("got %d errors, want 3", n)
	}
	if !strings.Contains(v.Err().Error(), "bad color") {
		t.Errorf("error %q lacks custom message", v.Err())
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"trace", "debug", "INFO", " warn ", "error"} {
		if _, err := ParseLogLevel(s); err != nil {
			t.Errorf("ParseLogLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
