// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by store, recording and render spans.
const (
	RecordingURIKey = "meamovie.recording.uri"
	DatasetKey      = "meamovie.dataset"
	FrameIndexKey   = "meamovie.frame.index"
	ChannelsKey     = "meamovie.channels"
	SamplesKey      = "meamovie.samples"
	ChunkKey        = "meamovie.chunk.key"
	StoreBackendKey = "meamovie.store.backend"
	CacheHitKey     = "meamovie.cache.hit"
	ViewIDKey       = "meamovie.view.id"
	RenderWidthKey  = "meamovie.render.width"
	RenderHeightKey = "meamovie.render.height"
	ColormapKey     = "meamovie.render.colormap"
	ErrorKey        = "error"
	ErrorTypeKey    = "error.type"
)

// FrameAttributes describes a single frame fetch.
func FrameAttributes(uri string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RecordingURIKey, uri),
		attribute.Int(FrameIndexKey, index),
	}
}

// ChunkAttributes describes one chunk read. Empty values are omitted.
func ChunkAttributes(backend, dataset, key string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if backend != "" {
		attrs = append(attrs, attribute.String(StoreBackendKey, backend))
	}
	if dataset != "" {
		attrs = append(attrs, attribute.String(DatasetKey, dataset))
	}
	if key != "" {
		attrs = append(attrs, attribute.String(ChunkKey, key))
	}
	return attrs
}

// RenderAttributes describes a raster pass.
func RenderAttributes(width, height, channels int, colormap string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RenderWidthKey, width),
		attribute.Int(RenderHeightKey, height),
		attribute.Int(ChannelsKey, channels),
		attribute.String(ColormapKey, colormap),
	}
}

// ErrorAttributes tags a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
