// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldViewID    = "view_id"
	FieldViewType  = "view_type"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Recording fields
	FieldRecording  = "recording"
	FieldDataset    = "dataset"
	FieldAttribute  = "attribute"
	FieldIndex      = "index"
	FieldChannels   = "channels"
	FieldSamples    = "samples"
	FieldGeneration = "generation"

	// Playback fields
	FieldDataTime = "data_time"
	FieldSpeed    = "speed"
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Store fields
	FieldBackend = "backend"
	FieldChunk   = "chunk"
	FieldPath    = "path"
	FieldURL     = "url"
)
