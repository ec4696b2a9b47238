// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package arraystore

import (
	"fmt"
)

// DType names an element type.
type DType string

const (
	Int8    DType = "int8"
	Uint8   DType = "uint8"
	Int16   DType = "int16"
	Uint16  DType = "uint16"
	Int32   DType = "int32"
	Uint32  DType = "uint32"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Size returns the element width in bytes, or 0 for an unknown type.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Array is a typed, flat, C-ordered block of elements with its shape.
type Array struct {
	dtype DType
	shape []int
	data  any
}

// NewArray wraps a typed slice. The slice type must match one of the DType
// constants ([]int16 for Int16 and so on).
func NewArray(shape []int, data any) (Array, error) {
	dt, n, err := sliceInfo(data)
	if err != nil {
		return Array{}, err
	}
	want := 1
	for _, s := range shape {
		want *= s
	}
	if want != n {
		return Array{}, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidSelection, shape, want, n)
	}
	return Array{dtype: dt, shape: append([]int(nil), shape...), data: data}, nil
}

// MakeArray allocates a zeroed array of the given type and shape.
func MakeArray(dt DType, shape []int) (Array, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	var data any
	switch dt {
	case Int8:
		data = make([]int8, n)
	case Uint8:
		data = make([]uint8, n)
	case Int16:
		data = make([]int16, n)
	case Uint16:
		data = make([]uint16, n)
	case Int32:
		data = make([]int32, n)
	case Uint32:
		data = make([]uint32, n)
	case Int64:
		data = make([]int64, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	default:
		return Array{}, fmt.Errorf("unsupported dtype %q", dt)
	}
	return Array{dtype: dt, shape: append([]int(nil), shape...), data: data}, nil
}

func sliceInfo(data any) (DType, int, error) {
	switch v := data.(type) {
	case []int8:
		return Int8, len(v), nil
	case []uint8:
		return Uint8, len(v), nil
	case []int16:
		return Int16, len(v), nil
	case []uint16:
		return Uint16, len(v), nil
	case []int32:
		return Int32, len(v), nil
	case []uint32:
		return Uint32, len(v), nil
	case []int64:
		return Int64, len(v), nil
	case []float32:
		return Float32, len(v), nil
	case []float64:
		return Float64, len(v), nil
	default:
		return "", 0, fmt.Errorf("unsupported slice type %T", data)
	}
}

// DType returns the element type.
func (a Array) DType() DType { return a.dtype }

// Shape returns a copy of the array shape.
func (a Array) Shape() []int { return append([]int(nil), a.shape...) }

// Len returns the number of elements.
func (a Array) Len() int {
	_, n, _ := sliceInfo(a.data)
	return n
}

// Data returns the underlying typed slice.
func (a Array) Data() any { return a.data }

// Int16 returns the elements as []int16.
func (a Array) Int16() ([]int16, error) {
	if v, ok := a.data.([]int16); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: have %s, want int16", ErrTypeMismatch, a.dtype)
}

// Float32 returns the elements as []float32.
func (a Array) Float32() ([]float32, error) {
	if v, ok := a.data.([]float32); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: have %s, want float32", ErrTypeMismatch, a.dtype)
}

// Float64s converts any numeric array to float64.
func (a Array) Float64s() []float64 {
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = a.Float64At(i)
	}
	return out
}

// Ints converts any integer array to int. Floating point values are truncated.
func (a Array) Ints() []int {
	out := make([]int, a.Len())
	for i := range out {
		out[i] = int(a.Int64At(i))
	}
	return out
}

// Float64At returns element i converted to float64.
func (a Array) Float64At(i int) float64 {
	switch v := a.data.(type) {
	case []int8:
		return float64(v[i])
	case []uint8:
		return float64(v[i])
	case []int16:
		return float64(v[i])
	case []uint16:
		return float64(v[i])
	case []int32:
		return float64(v[i])
	case []uint32:
		return float64(v[i])
	case []int64:
		return float64(v[i])
	case []float32:
		return float64(v[i])
	case []float64:
		return v[i]
	}
	return 0
}

// Int64At returns element i converted to int64.
func (a Array) Int64At(i int) int64 {
	switch v := a.data.(type) {
	case []int8:
		return int64(v[i])
	case []uint8:
		return int64(v[i])
	case []int16:
		return int64(v[i])
	case []uint16:
		return int64(v[i])
	case []int32:
		return int64(v[i])
	case []uint32:
		return int64(v[i])
	case []int64:
		return v[i]
	case []float32:
		return int64(v[i])
	case []float64:
		return int64(v[i])
	}
	return 0
}

// SetFloat64At stores x at element i, converting to the array type.
func (a Array) SetFloat64At(i int, x float64) {
	switch v := a.data.(type) {
	case []int8:
		v[i] = int8(x)
	case []uint8:
		v[i] = uint8(x)
	case []int16:
		v[i] = int16(x)
	case []uint16:
		v[i] = uint16(x)
	case []int32:
		v[i] = int32(x)
	case []uint32:
		v[i] = uint32(x)
	case []int64:
		v[i] = int64(x)
	case []float32:
		v[i] = float32(x)
	case []float64:
		v[i] = x
	}
}

// CopyElement copies element si of src into element di of dst. Both arrays
// must share a dtype.
func CopyElement(dst Array, di int, src Array, si int) {
	switch d := dst.data.(type) {
	case []int8:
		d[di] = src.data.([]int8)[si]
	case []uint8:
		d[di] = src.data.([]uint8)[si]
	case []int16:
		d[di] = src.data.([]int16)[si]
	case []uint16:
		d[di] = src.data.([]uint16)[si]
	case []int32:
		d[di] = src.data.([]int32)[si]
	case []uint32:
		d[di] = src.data.([]uint32)[si]
	case []int64:
		d[di] = src.data.([]int64)[si]
	case []float32:
		d[di] = src.data.([]float32)[si]
	case []float64:
		d[di] = src.data.([]float64)[si]
	}
}

// Slice extracts the elements inside sel from a full in-memory array. It is
// the reference implementation used by the memory store and by tests.
func (a Array) Slice(sel Selection) (Array, error) {
	sel, err := sel.Resolve(a.shape)
	if err != nil {
		return Array{}, err
	}
	out, err := MakeArray(a.dtype, sel.Shape())
	if err != nil {
		return Array{}, err
	}
	if out.Len() == 0 {
		return out, nil
	}
	strides := Strides(a.shape)
	idx := make([]int, len(sel))
	for i := range idx {
		idx[i] = sel[i].Start
	}
	for di := 0; di < out.Len(); di++ {
		si := 0
		for d := range idx {
			si += idx[d] * strides[d]
		}
		CopyElement(out, di, a, si)
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < sel[d].Stop {
				break
			}
			idx[d] = sel[d].Start
		}
	}
	return out, nil
}

// Strides returns C-order element strides for shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}
