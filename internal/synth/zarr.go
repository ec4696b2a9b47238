// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package synth

import (
	"fmt"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
)

// ChunkOptions returns the chunk shape used for each recording dataset: raw
// data in blocks of up to 200 timepoints spanning every channel, spikes in
// blocks of up to 1000 events.
func (d *Dataset) ChunkOptions() map[string][]int {
	T, C := d.Config.Samples, d.Config.Channels()
	n := len(d.SpikeFrames)
	spikeChunk := min(1000, max(1, n))
	return map[string][]int{
		"electrode_coords":      {C, 2},
		"raw_data":              {min(200, T), C},
		"spike_channel_indices": {spikeChunk},
		"spike_frame_indices":   {spikeChunk},
	}
}

// WriteZarr stores the recording as a group at path.
func (d *Dataset) WriteZarr(w *zarr.Writer, path string, comp *zarr.Compressor) error {
	arrays, err := d.arrays()
	if err != nil {
		return err
	}
	if err := w.CreateGroup(path, d.Attrs()); err != nil {
		return fmt.Errorf("create recording group: %w", err)
	}
	chunks := d.ChunkOptions()
	for name, arr := range arrays {
		opts := zarr.ArrayOptions{Chunks: chunks[name], Compressor: comp}
		if err := w.WriteArray(joinPath(path, name), arr, opts); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// WriteZarr stores the summary as a group at path.
func (r Rates) WriteZarr(w *zarr.Writer, path string, comp *zarr.Compressor) error {
	arrays, err := r.arrays()
	if err != nil {
		return err
	}
	if err := w.CreateGroup(path, r.Attrs()); err != nil {
		return fmt.Errorf("create rates group: %w", err)
	}
	for name, arr := range arrays {
		opts := zarr.ArrayOptions{Chunks: arr.Shape(), Compressor: comp}
		if name != "electrode_coords" {
			opts.Chunks = []int{min(100, r.Frames), r.Channels}
		}
		if err := w.WriteArray(joinPath(path, name), arr, opts); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func joinPath(group, name string) string {
	if group == "" {
		return name
	}
	return group + "/" + name
}
