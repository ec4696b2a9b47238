// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ManuGH/meamovie/internal/arraystore"
)

const (
	groupMetaKey = ".zgroup"
	arrayMetaKey = ".zarray"
	attrsKey     = ".zattrs"
)

// ErrUnsupported is returned for valid Zarr metadata this reader cannot serve
// (filters, Fortran order, unknown codecs and so on).
var ErrUnsupported = errors.New("zarr: unsupported")

// Compressor is a numcodecs compressor spec.
type Compressor struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// ArrayMeta is the content of a .zarray document.
type ArrayMeta struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              string            `json:"dtype"`
	Compressor         *Compressor       `json:"compressor"`
	FillValue          any               `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

type groupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

// elementType resolves a Zarr typestr into an element type and byte order.
type elementType struct {
	dtype arraystore.DType
	order binary.ByteOrder
}

var typestrs = map[string]arraystore.DType{
	"i1": arraystore.Int8,
	"u1": arraystore.Uint8,
	"i2": arraystore.Int16,
	"u2": arraystore.Uint16,
	"i4": arraystore.Int32,
	"u4": arraystore.Uint32,
	"i8": arraystore.Int64,
	"f4": arraystore.Float32,
	"f8": arraystore.Float64,
}

func parseTypestr(s string) (elementType, error) {
	if len(s) != 3 {
		return elementType{}, fmt.Errorf("%w: dtype %q", ErrUnsupported, s)
	}
	dt, ok := typestrs[s[1:]]
	if !ok {
		return elementType{}, fmt.Errorf("%w: dtype %q", ErrUnsupported, s)
	}
	switch s[0] {
	case '<', '|':
		return elementType{dtype: dt, order: binary.LittleEndian}, nil
	case '>':
		return elementType{dtype: dt, order: binary.BigEndian}, nil
	default:
		return elementType{}, fmt.Errorf("%w: byte order in dtype %q", ErrUnsupported, s)
	}
}

// Typestr returns the little-endian Zarr typestr for dt.
func Typestr(dt arraystore.DType) (string, error) {
	for k, v := range typestrs {
		if v == dt {
			if dt.Size() == 1 {
				return "|" + k, nil
			}
			return "<" + k, nil
		}
	}
	return "", fmt.Errorf("%w: dtype %s", ErrUnsupported, dt)
}

func (m *ArrayMeta) validate() (elementType, error) {
	if m.ZarrFormat != 2 {
		return elementType{}, fmt.Errorf("%w: zarr_format %d", ErrUnsupported, m.ZarrFormat)
	}
	if len(m.Shape) == 0 || len(m.Shape) != len(m.Chunks) {
		return elementType{}, fmt.Errorf("%w: shape %v with chunks %v", ErrUnsupported, m.Shape, m.Chunks)
	}
	for i, c := range m.Chunks {
		if c <= 0 || m.Shape[i] < 0 {
			return elementType{}, fmt.Errorf("zarr: invalid chunk grid shape=%v chunks=%v", m.Shape, m.Chunks)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return elementType{}, fmt.Errorf("%w: order %q", ErrUnsupported, m.Order)
	}
	if len(m.Filters) > 0 {
		return elementType{}, fmt.Errorf("%w: filters", ErrUnsupported)
	}
	if m.Compressor != nil {
		if _, ok := codecs[m.Compressor.ID]; !ok {
			return elementType{}, fmt.Errorf("%w: compressor %q", ErrUnsupported, m.Compressor.ID)
		}
	}
	switch m.DimensionSeparator {
	case "", ".", "/":
	default:
		return elementType{}, fmt.Errorf("%w: dimension_separator %q", ErrUnsupported, m.DimensionSeparator)
	}
	return parseTypestr(m.DType)
}

func (m *ArrayMeta) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// fill returns the fill value as float64. null and missing read as zero.
func (m *ArrayMeta) fill() float64 {
	switch v := m.FillValue.(type) {
	case float64:
		return v
	case string:
		switch strings.ToLower(v) {
		case "nan":
			return math.NaN()
		case "infinity":
			return math.Inf(1)
		case "-infinity":
			return math.Inf(-1)
		}
	}
	return 0
}
