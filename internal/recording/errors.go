// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMetadata marks a required group attribute that is absent.
	ErrMissingMetadata = errors.New("missing metadata")
	// ErrMissingDataset marks a required dataset that is absent.
	ErrMissingDataset = errors.New("missing dataset")
	// ErrIndexOutOfRange marks a frame or item index outside the recording.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidMetadata marks an attribute with an unusable value.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrInvalidDataset marks a dataset whose shape, type or content is inconsistent.
	ErrInvalidDataset = errors.New("invalid dataset")
)

// MissingMetadataError names the absent attribute.
type MissingMetadataError struct {
	Attribute string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("missing metadata attribute %q", e.Attribute)
}

// Is matches ErrMissingMetadata.
func (e *MissingMetadataError) Is(target error) bool { return target == ErrMissingMetadata }

// MissingDatasetError names the absent dataset.
type MissingDatasetError struct {
	Dataset string
	Err     error
}

func (e *MissingDatasetError) Error() string {
	return fmt.Sprintf("missing dataset %q", e.Dataset)
}

// Is matches ErrMissingDataset.
func (e *MissingDatasetError) Is(target error) bool { return target == ErrMissingDataset }

func (e *MissingDatasetError) Unwrap() error { return e.Err }

// IndexOutOfRangeError reports an index outside [0, Len).
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

// Is matches ErrIndexOutOfRange.
func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }
