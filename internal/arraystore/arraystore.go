// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package arraystore defines the read-only contract for chunked,
// slice-addressable array stores (groups of typed n-dimensional datasets with
// attribute metadata).
//
// Implementations must be safe for concurrent readers. Reads are idempotent and
// side-effect free; there is no abort protocol beyond the supplied context.
package arraystore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a group or dataset path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSelection is returned when a selection does not fit the dataset shape.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrTypeMismatch is returned when an Array is accessed as the wrong element type.
	ErrTypeMismatch = errors.New("array type mismatch")
)

// Group is a node holding attributes, nested groups and datasets.
type Group interface {
	Attrs() Attrs
	Group(ctx context.Context, path string) (Group, error)
	Dataset(ctx context.Context, path string) (Dataset, error)
}

// Dataset is a typed n-dimensional array.
type Dataset interface {
	Shape() []int
	DType() DType
	Attrs() Attrs
	// Read returns the elements inside sel in C order. A nil selection reads
	// the whole dataset.
	Read(ctx context.Context, sel Selection) (Array, error)
}

// Range is a half-open interval [Start, Stop) along one dimension.
type Range struct {
	Start int
	Stop  int
}

// Len returns the number of indices covered by the range.
func (r Range) Len() int { return r.Stop - r.Start }

// Selection is one Range per dataset dimension.
type Selection []Range

// Row selects the single row index of a 2-D dataset with the given width.
func Row(index, width int) Selection {
	return Selection{{Start: index, Stop: index + 1}, {Start: 0, Stop: width}}
}

// Resolve validates sel against shape. A nil selection expands to the full shape.
func (sel Selection) Resolve(shape []int) (Selection, error) {
	if sel == nil {
		full := make(Selection, len(shape))
		for i, n := range shape {
			full[i] = Range{Start: 0, Stop: n}
		}
		return full, nil
	}
	if len(sel) != len(shape) {
		return nil, fmt.Errorf("%w: %d ranges for %d dimensions", ErrInvalidSelection, len(sel), len(shape))
	}
	for i, r := range sel {
		if r.Start < 0 || r.Stop > shape[i] || r.Start > r.Stop {
			return nil, fmt.Errorf("%w: dim %d range [%d,%d) outside [0,%d)", ErrInvalidSelection, i, r.Start, r.Stop, shape[i])
		}
	}
	return sel, nil
}

// Shape returns the extent of each range.
func (sel Selection) Shape() []int {
	out := make([]int, len(sel))
	for i, r := range sel {
		out[i] = r.Len()
	}
	return out
}

// Size returns the number of elements covered by the selection.
func (sel Selection) Size() int {
	n := 1
	for _, r := range sel {
		n *= r.Len()
	}
	return n
}
