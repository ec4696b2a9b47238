// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zarr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/cache"
)

// samples builds a T x C int16 array where value = t*10 + c (mod int16).
func samples(t *testing.T, rows, cols int) arraystore.Array {
	t.Helper()
	data := make([]int16, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = int16(r*10 + c)
		}
	}
	arr, err := arraystore.NewArray([]int{rows, cols}, data)
	require.NoError(t, err)
	return arr
}

func TestWriterReaderRoundTrip(t *testing.T) {
	compressors := []*Compressor{
		nil,
		{ID: "zlib", Level: 1},
		{ID: "gzip", Level: 5},
		{ID: "zstd", Level: 3},
	}
	for _, comp := range compressors {
		name := "raw"
		if comp != nil {
			name = comp.ID
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			w, err := NewWriter(dir)
			require.NoError(t, err)
			require.NoError(t, w.CreateGroup("rec", arraystore.Attrs{"num_channels": 3}))

			src := samples(t, 7, 3)
			require.NoError(t, w.WriteArray("rec/raw_data", src, ArrayOptions{
				Chunks:     []int{2, 3},
				Compressor: comp,
			}))

			root, err := OpenDir(ctx, dir, "")
			require.NoError(t, err)
			g, err := root.Group(ctx, "rec")
			require.NoError(t, err)
			n, ok := g.Attrs().Int("num_channels")
			require.True(t, ok)
			assert.Equal(t, 3, n)

			ds, err := g.Dataset(ctx, "raw_data")
			require.NoError(t, err)
			assert.Equal(t, []int{7, 3}, ds.Shape())
			assert.Equal(t, arraystore.Int16, ds.DType())

			whole, err := ds.Read(ctx, nil)
			require.NoError(t, err)
			want, _ := src.Int16()
			got, _ := whole.Int16()
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			// last row lives in a padded edge chunk
			row, err := ds.Read(ctx, arraystore.Row(6, 3))
			require.NoError(t, err)
			got, _ = row.Int16()
			assert.Equal(t, []int16{60, 61, 62}, got)

			// block spanning two chunk rows
			block, err := ds.Read(ctx, arraystore.Selection{{Start: 1, Stop: 4}, {Start: 1, Stop: 3}})
			require.NoError(t, err)
			got, _ = block.Int16()
			assert.Equal(t, []int16{11, 12, 21, 22, 31, 32}, got)
		})
	}
}

func TestReadMissingChunkUsesFillValue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteArray("x", samples(t, 4, 2), ArrayOptions{Chunks: []int{2, 2}}))
	require.NoError(t, os.Remove(filepath.Join(dir, "x", "1.0")))

	arr, err := OpenArray(ctx, NewDirStore(dir), "x")
	require.NoError(t, err)
	out, err := arr.Read(ctx, nil)
	require.NoError(t, err)
	got, _ := out.Int16()
	assert.Equal(t, []int16{0, 1, 10, 11, 0, 0, 0, 0}, got)
}

func TestOpenMissingPaths(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := NewWriter(dir)
	require.NoError(t, err)

	root, err := OpenDir(ctx, dir, "")
	require.NoError(t, err)

	_, err = root.Dataset(ctx, "raw_data")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)
	_, err = root.Group(ctx, "nope")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)

	_, err = OpenDir(ctx, filepath.Join(dir, "absent"), "")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)
}

func TestArrayMetaValidation(t *testing.T) {
	tests := []struct {
		name string
		meta ArrayMeta
	}{
		{"format", ArrayMeta{ZarrFormat: 3, Shape: []int{1}, Chunks: []int{1}, DType: "<i2"}},
		{"order", ArrayMeta{ZarrFormat: 2, Shape: []int{1}, Chunks: []int{1}, DType: "<i2", Order: "F"}},
		{"codec", ArrayMeta{ZarrFormat: 2, Shape: []int{1}, Chunks: []int{1}, DType: "<i2", Compressor: &Compressor{ID: "blosc"}}},
		{"dtype", ArrayMeta{ZarrFormat: 2, Shape: []int{1}, Chunks: []int{1}, DType: "<c8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.meta.validate()
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}

	et, err := (&ArrayMeta{ZarrFormat: 2, Shape: []int{2}, Chunks: []int{2}, DType: ">u4"}).validate()
	require.NoError(t, err)
	arr, err := decodeElements(et, []int{2}, []byte{0, 0, 0, 1, 0, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 256}, arr.Ints())
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteArray("raw_data", samples(t, 5, 4), ArrayOptions{
		Chunks:     []int{2, 4},
		Compressor: &Compressor{ID: "zstd"},
	}))
	return dir
}

func TestHTTPStore(t *testing.T) {
	dir := writeFixture(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	ctx := context.Background()
	root, err := OpenHTTP(ctx, srv.URL, "", HTTPOptions{Backoff: time.Millisecond})
	require.NoError(t, err)

	ds, err := root.Dataset(ctx, "raw_data")
	require.NoError(t, err)
	row, err := ds.Read(ctx, arraystore.Row(3, 4))
	require.NoError(t, err)
	got, _ := row.Int16()
	assert.Equal(t, []int16{30, 31, 32, 33}, got)

	_, err = root.Dataset(ctx, "electrode_coords")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)
}

func TestHTTPStoreRetriesTransientFailures(t *testing.T) {
	dir := writeFixture(t)
	files := http.FileServer(http.Dir(dir))
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		files.ServeHTTP(w, r)
	}))
	defer srv.Close()

	st, err := NewHTTPStore(srv.URL, HTTPOptions{Retries: 2, Backoff: time.Millisecond})
	require.NoError(t, err)
	data, err := st.Get(context.Background(), ".zgroup")
	require.NoError(t, err)
	assert.Contains(t, string(data), "zarr_format")
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPStoreDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	st, err := NewHTTPStore(srv.URL, HTTPOptions{Retries: 3, Backoff: time.Millisecond})
	require.NoError(t, err)
	_, err = st.Get(context.Background(), "x")
	var se *statusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPStoreRejectsBadURL(t *testing.T) {
	_, err := NewHTTPStore("file:///tmp", HTTPOptions{})
	assert.Error(t, err)
}

type countingStore struct {
	inner Store
	gets  atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	return s.inner.Get(ctx, key)
}

func TestCachedStore(t *testing.T) {
	dir := writeFixture(t)
	backend := &countingStore{inner: NewDirStore(dir)}
	mem := cache.NewMemoryCache(1<<20, 0)
	defer func() { _ = mem.Close() }()
	st := NewCachedStore(backend, mem, "rec1:", time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := st.Get(ctx, "raw_data/0.0")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.gets.Load())

	_, err := st.Get(ctx, "raw_data/9.0")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)
	_, err = st.Get(ctx, "raw_data/9.0")
	assert.ErrorIs(t, err, arraystore.ErrNotFound)
	assert.Equal(t, int32(3), backend.gets.Load(), "missing keys are not cached")
}

type blockingStore struct {
	inner   Store
	started chan struct{}
	release chan struct{}
	gets    atomic.Int32
}

func (s *blockingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.gets.Add(1) == 1 {
		close(s.started)
	}
	select {
	case <-s.release:
		return s.inner.Get(ctx, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedStoreSharedReadOutlivesCaller(t *testing.T) {
	backend := &blockingStore{
		inner:   NewDirStore(writeFixture(t)),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	mem := cache.NewMemoryCache(1<<20, 0)
	defer func() { _ = mem.Close() }()
	st := NewCachedStore(backend, mem, "rec1:", time.Minute)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := st.Get(first, "raw_data/0.0")
		firstErr <- err
	}()
	<-backend.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := st.Get(context.Background(), "raw_data/0.0")
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(backend.release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), backend.gets.Load())

	_, ok := mem.Get(context.Background(), "rec1:raw_data/0.0")
	assert.True(t, ok, "shared read still fills the cache")
}

func TestDirStoreKeepsKeysInsideRoot(t *testing.T) {
	s := NewDirStore("/data/zarr")
	assert.Equal(t, filepath.FromSlash("/data/zarr/etc/passwd"), s.path("../../etc/passwd"))
}
