// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/meamovie/internal/arraystore"
)

// Writer creates Zarr v2 groups and arrays in a local directory. Every file is
// written through a pending file and atomically renamed into place, so
// concurrent readers never observe a torn chunk or metadata document.
type Writer struct {
	root string
}

// ArrayOptions controls how WriteArray lays out an array.
type ArrayOptions struct {
	// Chunks defaults to the full shape (a single chunk).
	Chunks     []int
	Compressor *Compressor
	Attrs      arraystore.Attrs
}

// NewWriter creates dir (if needed) and marks it as a root group.
func NewWriter(dir string) (*Writer, error) {
	w := &Writer{root: filepath.Clean(dir)}
	if err := w.CreateGroup("", nil); err != nil {
		return nil, err
	}
	return w, nil
}

// Root returns the directory the writer targets.
func (w *Writer) Root() string { return w.root }

// CreateGroup writes .zgroup (and .zattrs when attrs is non-empty) at path.
func (w *Writer) CreateGroup(path string, attrs arraystore.Attrs) error {
	path = cleanPath(path)
	if err := w.writeJSON(joinKey(path, groupMetaKey), groupMeta{ZarrFormat: 2}); err != nil {
		return err
	}
	if len(attrs) > 0 {
		return w.SetAttrs(path, attrs)
	}
	return nil
}

// SetAttrs replaces the attributes of the node at path.
func (w *Writer) SetAttrs(path string, attrs arraystore.Attrs) error {
	return w.writeJSON(joinKey(cleanPath(path), attrsKey), attrs)
}

// WriteArray stores arr at path.
func (w *Writer) WriteArray(path string, arr arraystore.Array, opts ArrayOptions) error {
	path = cleanPath(path)
	shape := arr.Shape()
	if len(shape) == 0 {
		return fmt.Errorf("%w: zero-dimensional array", ErrUnsupported)
	}
	chunks := opts.Chunks
	if chunks == nil {
		chunks = make([]int, len(shape))
		for i, s := range shape {
			chunks[i] = max(1, s)
		}
	}
	typestr, err := Typestr(arr.DType())
	if err != nil {
		return err
	}
	meta := ArrayMeta{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     chunks,
		DType:      typestr,
		Compressor: opts.Compressor,
		FillValue:  float64(0),
		Order:      "C",
	}
	if _, err := meta.validate(); err != nil {
		return fmt.Errorf("zarr: array %q: %w", path, err)
	}
	if err := w.writeJSON(joinKey(path, arrayMetaKey), meta); err != nil {
		return err
	}
	if len(opts.Attrs) > 0 {
		if err := w.SetAttrs(path, opts.Attrs); err != nil {
			return err
		}
	}

	full, _ := arraystore.Selection(nil).Resolve(shape)
	if full.Size() == 0 {
		return nil
	}
	a := &Array{path: path, meta: meta}
	for _, idx := range chunkIndices(full, chunks) {
		chunk, err := arraystore.MakeArray(arr.DType(), chunks)
		if err != nil {
			return err
		}
		extractChunk(chunk, arr, shape, idx, chunks)
		payload, err := compress(opts.Compressor, encodeElements(chunk))
		if err != nil {
			return fmt.Errorf("zarr: encode chunk %s: %w", a.chunkKey(idx), err)
		}
		if err := w.writeFile(a.chunkKey(idx), payload); err != nil {
			return err
		}
	}
	return nil
}

// extractChunk copies the elements of src covered by chunk idx into chunk.
// Edge chunks keep zero padding beyond the array bounds.
func extractChunk(chunk, src arraystore.Array, shape, idx, chunks []int) {
	n := len(shape)
	origin := make([]int, n)
	hi := make([]int, n)
	for d := range shape {
		origin[d] = idx[d] * chunks[d]
		hi[d] = min(shape[d], origin[d]+chunks[d])
	}
	srcStrides := arraystore.Strides(shape)
	dstStrides := arraystore.Strides(chunks)

	cur := append([]int(nil), origin...)
	for {
		si, di := 0, 0
		for d := range cur {
			si += cur[d] * srcStrides[d]
			di += (cur[d] - origin[d]) * dstStrides[d]
		}
		arraystore.CopyElement(chunk, di, src, si)

		d := n - 1
		for ; d >= 0; d-- {
			cur[d]++
			if cur[d] < hi[d] {
				break
			}
			cur[d] = origin[d]
		}
		if d < 0 {
			return
		}
	}
}

func (w *Writer) writeJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("zarr: encode %s: %w", key, err)
	}
	return w.writeFile(key, data)
}

func (w *Writer) writeFile(key string, data []byte) error {
	target := filepath.Join(w.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("zarr: create directory for %s: %w", key, err)
	}

	pending, err := renameio.NewPendingFile(target, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("zarr: create pending file %s: %w", key, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("zarr: write %s: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("zarr: commit %s: %w", key, err)
	}
	return nil
}
