// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates configuration validation errors so a config
// file reports every bad field at once instead of the first one.
package validate

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is one rejected field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is the combined result of a failed Validator.
type ValidationError struct {
	errors []Error
}

func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields lists the failing field names in the order they were checked.
func (e ValidationError) Fields() []string {
	out := make([]string, len(e.errors))
	for i, err := range e.errors {
		out[i] = err.Field
	}
	return out
}

type Validator struct {
	errors []Error
}

func New() *Validator { return &Validator{} }

func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Errors() []Error { return v.errors }

// Err returns nil when valid, otherwise a ValidationError snapshot.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host and, when schemes is non-empty,
// one of the listed schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.failf(field, value, "invalid URL: %v", err)
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.failf(field, value, "unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes)
	}
}

// ListenAddr requires host:port with a numeric port; the host may be empty.
func (v *Validator) ListenAddr(field, value string) {
	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.failf(field, value, "invalid listen address: %v", err)
		return
	}
	if port, err := strconv.Atoi(portStr); err != nil || port < 0 || port > 65535 {
		v.failf(field, value, "invalid port %q", portStr)
	}
}

func (v *Validator) Range(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.failf(field, value, "value must be between %d and %d, got %d", lo, hi, value)
	}
}

// FloatRange rejects NaN as well as values outside [lo, hi].
func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	if !(value >= lo && value <= hi) {
		v.failf(field, value, "value must be between %g and %g, got %g", lo, hi, value)
	}
}

func (v *Validator) PositiveFloat(field string, value float64) {
	if !(value > 0) || math.IsInf(value, 1) {
		v.failf(field, value, "value must be positive, got %g", value)
	}
}

func (v *Validator) DurationRange(field string, d, lo, hi time.Duration) {
	if d < lo || d > hi {
		v.failf(field, d, "duration must be between %s and %s, got %s", lo, hi, d)
	}
}

func (v *Validator) Directory(field, path string) {
	if path == "" {
		v.AddError(field, "directory path cannot be empty", path)
		return
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.AddError(field, "directory does not exist", path)
	case err != nil:
		v.failf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.AddError(field, "path is not a directory", path)
	}
}

func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "value must be one of %v, got %q", allowed, value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %d", value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "value cannot be negative, got %d", value)
	}
}

// Custom records fn's error, if any, against field.
func (v *Validator) Custom(field string, value any, fn func(any) error) {
	if err := fn(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}

// LogLevel is a zerolog level name accepted in config.
type LogLevel string

var logLevels = []LogLevel{"trace", "debug", "info", "warn", "error"}

// ErrInvalidLogLevel is returned by ParseLogLevel for unknown names.
var ErrInvalidLogLevel = &Error{
	Field:   "log.level",
	Message: "invalid log level (must be: trace, debug, info, warn, error)",
}

func (l LogLevel) IsValid() bool { return slices.Contains(logLevels, l) }

func (l LogLevel) String() string { return string(l) }

// ParseLogLevel is case and whitespace insensitive.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", ErrInvalidLogLevel
	}
	return level, nil
}
