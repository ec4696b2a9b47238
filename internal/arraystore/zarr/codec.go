// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/ManuGH/meamovie/internal/arraystore"
)

type codec struct {
	decode func(src []byte) ([]byte, error)
	encode func(src []byte, level int) ([]byte, error)
}

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

var codecs = map[string]codec{
	"zlib": {
		decode: func(src []byte) ([]byte, error) {
			r, err := zlib.NewReader(bytes.NewReader(src))
			if err != nil {
				return nil, err
			}
			defer func() { _ = r.Close() }()
			return io.ReadAll(r)
		},
		encode: func(src []byte, level int) ([]byte, error) {
			var buf bytes.Buffer
			w, err := zlib.NewWriterLevel(&buf, clampLevel(level, 1))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(src); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	},
	"gzip": {
		decode: func(src []byte) ([]byte, error) {
			r, err := gzip.NewReader(bytes.NewReader(src))
			if err != nil {
				return nil, err
			}
			defer func() { _ = r.Close() }()
			return io.ReadAll(r)
		},
		encode: func(src []byte, level int) ([]byte, error) {
			var buf bytes.Buffer
			w, err := gzip.NewWriterLevel(&buf, clampLevel(level, 5))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(src); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	},
	"zstd": {
		decode: func(src []byte) ([]byte, error) {
			return zstdDecoder.DecodeAll(src, nil)
		},
		encode: func(src []byte, level int) ([]byte, error) {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
			if err != nil {
				return nil, err
			}
			defer func() { _ = enc.Close() }()
			return enc.EncodeAll(src, nil), nil
		},
	},
}

func clampLevel(level, def int) int {
	if level <= 0 || level > 9 {
		return def
	}
	return level
}

func decompress(c *Compressor, src []byte) ([]byte, error) {
	if c == nil {
		return src, nil
	}
	cd, ok := codecs[c.ID]
	if !ok {
		return nil, fmt.Errorf("%w: compressor %q", ErrUnsupported, c.ID)
	}
	out, err := cd.decode(src)
	if err != nil {
		return nil, fmt.Errorf("zarr: %s decode: %w", c.ID, err)
	}
	return out, nil
}

func compress(c *Compressor, src []byte) ([]byte, error) {
	if c == nil {
		return src, nil
	}
	cd, ok := codecs[c.ID]
	if !ok {
		return nil, fmt.Errorf("%w: compressor %q", ErrUnsupported, c.ID)
	}
	return cd.encode(src, c.Level)
}

// decodeElements converts raw chunk bytes into a typed array of the given shape.
func decodeElements(et elementType, shape []int, raw []byte) (arraystore.Array, error) {
	arr, err := arraystore.MakeArray(et.dtype, shape)
	if err != nil {
		return arraystore.Array{}, err
	}
	if want := arr.Len() * et.dtype.Size(); len(raw) != want {
		return arraystore.Array{}, fmt.Errorf("zarr: chunk has %d bytes, want %d", len(raw), want)
	}
	o := et.order
	switch v := arr.Data().(type) {
	case []int8:
		for i := range v {
			v[i] = int8(raw[i])
		}
	case []uint8:
		copy(v, raw)
	case []int16:
		for i := range v {
			v[i] = int16(o.Uint16(raw[2*i:]))
		}
	case []uint16:
		for i := range v {
			v[i] = o.Uint16(raw[2*i:])
		}
	case []int32:
		for i := range v {
			v[i] = int32(o.Uint32(raw[4*i:]))
		}
	case []uint32:
		for i := range v {
			v[i] = o.Uint32(raw[4*i:])
		}
	case []int64:
		for i := range v {
			v[i] = int64(o.Uint64(raw[8*i:]))
		}
	case []float32:
		for i := range v {
			v[i] = math.Float32frombits(o.Uint32(raw[4*i:]))
		}
	case []float64:
		for i := range v {
			v[i] = math.Float64frombits(o.Uint64(raw[8*i:]))
		}
	}
	return arr, nil
}

// encodeElements serializes arr little-endian.
func encodeElements(arr arraystore.Array) []byte {
	size := arr.DType().Size()
	out := make([]byte, arr.Len()*size)
	le := binary.LittleEndian
	switch v := arr.Data().(type) {
	case []int8:
		for i, x := range v {
			out[i] = byte(x)
		}
	case []uint8:
		copy(out, v)
	case []int16:
		for i, x := range v {
			le.PutUint16(out[2*i:], uint16(x))
		}
	case []uint16:
		for i, x := range v {
			le.PutUint16(out[2*i:], x)
		}
	case []int32:
		for i, x := range v {
			le.PutUint32(out[4*i:], uint32(x))
		}
	case []uint32:
		for i, x := range v {
			le.PutUint32(out[4*i:], x)
		}
	case []int64:
		for i, x := range v {
			le.PutUint64(out[8*i:], uint64(x))
		}
	case []float32:
		for i, x := range v {
			le.PutUint32(out[4*i:], math.Float32bits(x))
		}
	case []float64:
		for i, x := range v {
			le.PutUint64(out[8*i:], math.Float64bits(x))
		}
	}
	return out
}
