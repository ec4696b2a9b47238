// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/telemetry"
)

// maxChunkFetches bounds concurrent chunk reads per Read call.
const maxChunkFetches = 8

// Group is a Zarr v2 group.
type Group struct {
	store Store
	path  string
	attrs arraystore.Attrs
}

var (
	_ arraystore.Group   = (*Group)(nil)
	_ arraystore.Dataset = (*Array)(nil)
)

// Open reads the group metadata at path. A missing .zgroup is reported as
// arraystore.ErrNotFound.
func Open(ctx context.Context, store Store, path string) (*Group, error) {
	path = cleanPath(path)
	raw, err := store.Get(ctx, joinKey(path, groupMetaKey))
	if err != nil {
		return nil, fmt.Errorf("zarr: open group %q: %w", path, err)
	}
	var gm groupMeta
	if err := json.Unmarshal(raw, &gm); err != nil {
		return nil, fmt.Errorf("zarr: parse %s: %w", joinKey(path, groupMetaKey), err)
	}
	if gm.ZarrFormat != 2 {
		return nil, fmt.Errorf("%w: zarr_format %d", ErrUnsupported, gm.ZarrFormat)
	}
	attrs, err := readAttrs(ctx, store, path)
	if err != nil {
		return nil, err
	}
	return &Group{store: store, path: path, attrs: attrs}, nil
}

func readAttrs(ctx context.Context, store Store, path string) (arraystore.Attrs, error) {
	raw, err := store.Get(ctx, joinKey(path, attrsKey))
	if IsNotFound(err) {
		return arraystore.Attrs{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("zarr: read attributes of %q: %w", path, err)
	}
	attrs := arraystore.Attrs{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("zarr: parse attributes of %q: %w", path, err)
	}
	return attrs, nil
}

// Path returns the group path inside the store.
func (g *Group) Path() string { return g.path }

// Attrs implements arraystore.Group.
func (g *Group) Attrs() arraystore.Attrs { return g.attrs }

// Group implements arraystore.Group.
func (g *Group) Group(ctx context.Context, path string) (arraystore.Group, error) {
	return Open(ctx, g.store, joinKey(g.path, cleanPath(path)))
}

// Dataset implements arraystore.Group.
func (g *Group) Dataset(ctx context.Context, path string) (arraystore.Dataset, error) {
	return OpenArray(ctx, g.store, joinKey(g.path, cleanPath(path)))
}

// Array is a Zarr v2 array.
type Array struct {
	store Store
	path  string
	meta  ArrayMeta
	et    elementType
	attrs arraystore.Attrs
}

// OpenArray reads the array metadata at path.
func OpenArray(ctx context.Context, store Store, path string) (*Array, error) {
	raw, err := store.Get(ctx, joinKey(path, arrayMetaKey))
	if err != nil {
		return nil, fmt.Errorf("zarr: open array %q: %w", path, err)
	}
	var meta ArrayMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("zarr: parse %s: %w", joinKey(path, arrayMetaKey), err)
	}
	et, err := meta.validate()
	if err != nil {
		return nil, fmt.Errorf("zarr: array %q: %w", path, err)
	}
	attrs, err := readAttrs(ctx, store, path)
	if err != nil {
		return nil, err
	}
	return &Array{store: store, path: path, meta: meta, et: et, attrs: attrs}, nil
}

// Shape implements arraystore.Dataset.
func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

// DType implements arraystore.Dataset.
func (a *Array) DType() arraystore.DType { return a.et.dtype }

// Attrs implements arraystore.Dataset.
func (a *Array) Attrs() arraystore.Attrs { return a.attrs }

// Meta returns the parsed .zarray document.
func (a *Array) Meta() ArrayMeta { return a.meta }

// Read implements arraystore.Dataset. Chunks intersecting sel are fetched
// concurrently and copied into the result; missing chunks read as the fill value.
func (a *Array) Read(ctx context.Context, sel arraystore.Selection) (arraystore.Array, error) {
	sel, err := sel.Resolve(a.meta.Shape)
	if err != nil {
		return arraystore.Array{}, err
	}
	out, err := arraystore.MakeArray(a.et.dtype, sel.Shape())
	if err != nil {
		return arraystore.Array{}, err
	}
	if out.Len() == 0 {
		return out, nil
	}

	ctx, span := telemetry.Tracer("meamovie.zarr").Start(ctx, "zarr.array.read")
	span.SetAttributes(telemetry.ChunkAttributes("", a.path, "")...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxChunkFetches)
	for _, idx := range chunkIndices(sel, a.meta.Chunks) {
		g.Go(func() error {
			chunk, err := a.readChunk(gctx, idx)
			if err != nil {
				return err
			}
			copyIntersection(out, sel, chunk, idx, a.meta.Chunks)
			return nil
		})
	}
	err = g.Wait()
	telemetry.End(span, err)
	if err != nil {
		return arraystore.Array{}, err
	}
	return out, nil
}

func (a *Array) chunkKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return joinKey(a.path, strings.Join(parts, a.meta.separator()))
}

func (a *Array) readChunk(ctx context.Context, idx []int) (arraystore.Array, error) {
	key := a.chunkKey(idx)
	raw, err := a.store.Get(ctx, key)
	if IsNotFound(err) {
		return a.fillChunk()
	}
	if err != nil {
		return arraystore.Array{}, err
	}
	decoded, err := decompress(a.meta.Compressor, raw)
	if err != nil {
		return arraystore.Array{}, fmt.Errorf("chunk %s: %w", key, err)
	}
	arr, err := decodeElements(a.et, a.meta.Chunks, decoded)
	if err != nil {
		return arraystore.Array{}, fmt.Errorf("chunk %s: %w", key, err)
	}
	return arr, nil
}

func (a *Array) fillChunk() (arraystore.Array, error) {
	arr, err := arraystore.MakeArray(a.et.dtype, a.meta.Chunks)
	if err != nil {
		return arraystore.Array{}, err
	}
	if fv := a.meta.fill(); fv != 0 {
		for i := 0; i < arr.Len(); i++ {
			arr.SetFloat64At(i, fv)
		}
	}
	return arr, nil
}

// chunkIndices lists the chunk grid coordinates touched by sel, in C order.
func chunkIndices(sel arraystore.Selection, chunks []int) [][]int {
	lo := make([]int, len(sel))
	hi := make([]int, len(sel))
	for d, r := range sel {
		lo[d] = r.Start / chunks[d]
		hi[d] = (r.Stop - 1) / chunks[d]
	}
	var out [][]int
	cur := append([]int(nil), lo...)
	for {
		out = append(out, append([]int(nil), cur...))
		d := len(cur) - 1
		for ; d >= 0; d-- {
			cur[d]++
			if cur[d] <= hi[d] {
				break
			}
			cur[d] = lo[d]
		}
		if d < 0 {
			return out
		}
	}
}

// copyIntersection copies the part of chunk (grid coordinate idx) that lies
// inside sel into out. Distinct chunks write disjoint elements of out.
func copyIntersection(out arraystore.Array, sel arraystore.Selection, chunk arraystore.Array, idx, chunks []int) {
	n := len(sel)
	lo := make([]int, n)
	hi := make([]int, n)
	origin := make([]int, n)
	for d := range sel {
		origin[d] = idx[d] * chunks[d]
		lo[d] = max(sel[d].Start, origin[d])
		hi[d] = min(sel[d].Stop, origin[d]+chunks[d])
		if lo[d] >= hi[d] {
			return
		}
	}
	srcStrides := arraystore.Strides(chunks)
	dstStrides := arraystore.Strides(sel.Shape())

	cur := append([]int(nil), lo...)
	for {
		si, di := 0, 0
		for d := range cur {
			si += (cur[d] - origin[d]) * srcStrides[d]
			di += (cur[d] - sel[d].Start) * dstStrides[d]
		}
		arraystore.CopyElement(out, di, chunk, si)

		d := n - 1
		for ; d >= 0; d-- {
			cur[d]++
			if cur[d] < hi[d] {
				break
			}
			cur[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}

func cleanPath(p string) string {
	parts := make([]string, 0, 4)
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "/" + name
}
