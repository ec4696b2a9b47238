// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recording exposes one electrode-array movie stored in a chunked
// array store: validated metadata, the lazily loaded electrode layout,
// on-demand sample frames and the spike index.
package recording

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/meamovie/internal/arraystore"
	"github.com/ManuGH/meamovie/internal/log"
	"github.com/ManuGH/meamovie/internal/metrics"
	"github.com/ManuGH/meamovie/internal/telemetry"
)

// Attribute and dataset names on the recording group.
const (
	AttrNumTimepoints       = "num_timepoints"
	AttrNumFrames           = "num_frames"
	AttrNumChannels         = "num_channels"
	AttrSamplingFrequencyHz = "sampling_frequency_hz"
	AttrStartTimeSec        = "start_time_sec"
	AttrDataMin             = "data_min"
	AttrDataMax             = "data_max"
	AttrDataMedian          = "data_median"
	AttrNumSpikes           = "num_spikes"
	AttrViewType            = "view_type"

	datasetRawData             = "raw_data"
	datasetElectrodeCoords     = "electrode_coords"
	datasetSpikeChannelIndices = "spike_channel_indices"
	datasetSpikeFrameIndices   = "spike_frame_indices"
)

// Metadata is the immutable per-recording header.
type Metadata struct {
	SampleCount       int     `json:"sampleCount"`
	ChannelCount      int     `json:"channelCount"`
	SamplingFrequency float64 `json:"samplingFrequencyHz"`
	StartTime         float64 `json:"startTimeSec"`
	DataMin           float64 `json:"dataMin"`
	DataMax           float64 `json:"dataMax"`
	DataMedian        float64 `json:"dataMedian"`
	SpikeCount        int     `json:"spikeCount"`
	// ViewType is the optional view_type attribute; empty when absent.
	ViewType string `json:"viewType,omitempty"`
}

// EndTime returns StartTime + SampleCount/SamplingFrequency.
func (m Metadata) EndTime() float64 {
	return m.StartTime + float64(m.SampleCount)/m.SamplingFrequency
}

// Duration returns the recording length in seconds.
func (m Metadata) Duration() float64 {
	return float64(m.SampleCount) / m.SamplingFrequency
}

// Spike is one detected event.
type Spike struct {
	Channel int `json:"channel"`
	Index   int `json:"index"`
}

// Recording is a read-only client for one recording group. It is safe for
// concurrent use.
type Recording struct {
	group  arraystore.Group
	meta   Metadata
	uri    string
	logger zerolog.Logger

	spikes     []Spike
	spikeIndex map[int][]int

	layout layoutSlot

	rawMu     sync.Mutex
	raw       arraystore.Dataset
	rawLoaded bool
}

// Option configures Open.
type Option func(*Recording)

// WithURI records where the group came from; it is attached to logs and spans.
func WithURI(uri string) Option {
	return func(r *Recording) { r.uri = uri }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Recording) { r.logger = l }
}

// Open validates the group metadata and, when num_spikes > 0, eagerly loads
// and indexes the spike arrays. Any failure aborts the open.
func Open(ctx context.Context, group arraystore.Group, opts ...Option) (*Recording, error) {
	r := &Recording{group: group, logger: log.WithComponent("recording")}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str(log.FieldRecording, r.uri).Logger()

	meta, err := readMetadata(group.Attrs())
	if err != nil {
		return nil, err
	}
	r.meta = meta

	if meta.SpikeCount > 0 {
		if err := r.loadSpikes(ctx); err != nil {
			return nil, err
		}
	}

	r.logger.Info().
		Str(log.FieldEvent, "recording.opened").
		Int(log.FieldSamples, meta.SampleCount).
		Int(log.FieldChannels, meta.ChannelCount).
		Float64("sampling_frequency_hz", meta.SamplingFrequency).
		Int("spikes", meta.SpikeCount).
		Msg("recording opened")
	return r, nil
}

func readMetadata(attrs arraystore.Attrs) (Metadata, error) {
	var m Metadata
	var err error

	sampleKey := AttrNumTimepoints
	if !attrs.Has(sampleKey) && attrs.Has(AttrNumFrames) {
		sampleKey = AttrNumFrames
	}
	if m.SampleCount, err = requireInt(attrs, sampleKey); err != nil {
		return Metadata{}, err
	}
	if m.ChannelCount, err = requireInt(attrs, AttrNumChannels); err != nil {
		return Metadata{}, err
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{AttrSamplingFrequencyHz, &m.SamplingFrequency},
		{AttrStartTimeSec, &m.StartTime},
		{AttrDataMin, &m.DataMin},
		{AttrDataMax, &m.DataMax},
		{AttrDataMedian, &m.DataMedian},
	}
	for _, f := range floats {
		if *f.dst, err = requireFloat(attrs, f.key); err != nil {
			return Metadata{}, err
		}
	}
	if attrs.Has(AttrNumSpikes) {
		n, ok := attrs.Int(AttrNumSpikes)
		if !ok || n < 0 {
			return Metadata{}, fmt.Errorf("%w: %s = %v", ErrInvalidMetadata, AttrNumSpikes, attrs[AttrNumSpikes])
		}
		m.SpikeCount = n
	}
	m.ViewType, _ = attrs.String(AttrViewType)

	switch {
	case m.SampleCount <= 0:
		return Metadata{}, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidMetadata, sampleKey, m.SampleCount)
	case m.ChannelCount <= 0:
		return Metadata{}, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidMetadata, AttrNumChannels, m.ChannelCount)
	case !(m.SamplingFrequency > 0) || math.IsInf(m.SamplingFrequency, 0):
		return Metadata{}, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidMetadata, AttrSamplingFrequencyHz, m.SamplingFrequency)
	}
	return m, nil
}

func requireInt(attrs arraystore.Attrs, key string) (int, error) {
	if !attrs.Has(key) {
		return 0, &MissingMetadataError{Attribute: key}
	}
	n, ok := attrs.Int(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s = %v is not an integer", ErrInvalidMetadata, key, attrs[key])
	}
	return n, nil
}

func requireFloat(attrs arraystore.Attrs, key string) (float64, error) {
	if !attrs.Has(key) {
		return 0, &MissingMetadataError{Attribute: key}
	}
	f, ok := attrs.Float(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s = %v is not a number", ErrInvalidMetadata, key, attrs[key])
	}
	return f, nil
}

func (r *Recording) loadSpikes(ctx context.Context) error {
	channels, err := r.readSpikeArray(ctx, datasetSpikeChannelIndices)
	if err != nil {
		return err
	}
	frames, err := r.readSpikeArray(ctx, datasetSpikeFrameIndices)
	if err != nil {
		return err
	}

	n := r.meta.SpikeCount
	r.spikes = make([]Spike, n)
	r.spikeIndex = make(map[int][]int)
	for i := 0; i < n; i++ {
		ch, fr := channels[i], frames[i]
		if ch < 0 || ch >= r.meta.ChannelCount {
			return fmt.Errorf("%w: spike %d has channel %d, want < %d", ErrInvalidDataset, i, ch, r.meta.ChannelCount)
		}
		if fr < 0 || fr >= r.meta.SampleCount {
			return fmt.Errorf("%w: spike %d has frame %d, want < %d", ErrInvalidDataset, i, fr, r.meta.SampleCount)
		}
		r.spikes[i] = Spike{Channel: ch, Index: fr}
		r.spikeIndex[fr] = append(r.spikeIndex[fr], ch)
	}
	return nil
}

func (r *Recording) readSpikeArray(ctx context.Context, name string) ([]int, error) {
	ds, err := openDataset(ctx, r.group, name)
	if err != nil {
		return nil, err
	}
	if shape := ds.Shape(); len(shape) != 1 || shape[0] != r.meta.SpikeCount {
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d]", ErrInvalidDataset, name, shape, r.meta.SpikeCount)
	}
	switch ds.DType() {
	case arraystore.Int8, arraystore.Uint8, arraystore.Int16, arraystore.Uint16,
		arraystore.Int32, arraystore.Uint32, arraystore.Int64:
	default:
		return nil, fmt.Errorf("%w: %s has dtype %s, want an integer type", ErrInvalidDataset, name, ds.DType())
	}
	arr, err := ds.Read(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return arr.Ints(), nil
}

// Metadata returns the validated header.
func (r *Recording) Metadata() Metadata { return r.meta }

// URI returns the source identifier given to Open.
func (r *Recording) URI() string { return r.uri }

// ElectrodeLayout returns one position per channel. The first successful
// fetch is memoized; the returned slice must not be modified.
func (r *Recording) ElectrodeLayout(ctx context.Context) ([]Point, error) {
	return r.layout.get(ctx, r.group, r.meta.ChannelCount)
}

// LayoutLoaded reports whether ElectrodeLayout has completed successfully.
func (r *Recording) LayoutLoaded() bool { return r.layout.isLoaded() }

// Frame fetches one sample row. Every call reads from the store.
func (r *Recording) Frame(ctx context.Context, index int) (values []int16, err error) {
	if index < 0 || index >= r.meta.SampleCount {
		return nil, &IndexOutOfRangeError{Index: index, Len: r.meta.SampleCount}
	}

	ctx, span := telemetry.Tracer("meamovie.recording").Start(ctx, "recording.Frame")
	span.SetAttributes(telemetry.FrameAttributes(r.uri, index)...)
	start := time.Now()
	defer func() {
		metrics.ObserveFrameFetch(err, time.Since(start))
		telemetry.End(span, err)
	}()

	ds, err := r.rawData(ctx)
	if err != nil {
		return nil, err
	}
	arr, err := ds.Read(ctx, arraystore.Row(index, r.meta.ChannelCount))
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", index, err)
	}
	return arr.Int16()
}

// rawData opens raw_data once and checks its shape and type.
func (r *Recording) rawData(ctx context.Context) (arraystore.Dataset, error) {
	r.rawMu.Lock()
	defer r.rawMu.Unlock()
	if r.rawLoaded {
		return r.raw, nil
	}
	ds, err := openDataset(ctx, r.group, datasetRawData)
	if err != nil {
		return nil, err
	}
	shape := ds.Shape()
	if len(shape) != 2 || shape[0] != r.meta.SampleCount || shape[1] != r.meta.ChannelCount {
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d %d]",
			ErrInvalidDataset, datasetRawData, shape, r.meta.SampleCount, r.meta.ChannelCount)
	}
	if ds.DType() != arraystore.Int16 {
		return nil, fmt.Errorf("%w: %s has dtype %s, want int16", ErrInvalidDataset, datasetRawData, ds.DType())
	}
	r.raw = ds
	r.rawLoaded = true
	return ds, nil
}

// SpikingChannels returns the channels that spiked at exactly index. The
// result is shared and must not be modified.
func (r *Recording) SpikingChannels(index int) []int {
	return r.spikeIndex[index]
}

// Spikes returns a copy of every spike event in storage order.
func (r *Recording) Spikes() []Spike {
	return append([]Spike(nil), r.spikes...)
}

// TimeToIndex maps a data time to the nearest sample index, clamped into
// [0, SampleCount-1].
func (r *Recording) TimeToIndex(t float64) int {
	return TimeToIndex(r.meta, t)
}

// IndexToTime maps a sample index to its data time.
func (r *Recording) IndexToTime(i int) float64 {
	return IndexToTime(r.meta, i)
}

// TimeToIndex is the pure conversion behind Recording.TimeToIndex.
func TimeToIndex(m Metadata, t float64) int {
	if math.IsNaN(t) {
		return 0
	}
	x := math.Round((t - m.StartTime) * m.SamplingFrequency)
	switch {
	case x <= 0:
		return 0
	case x >= float64(m.SampleCount-1):
		return m.SampleCount - 1
	default:
		return int(x)
	}
}

// IndexToTime is the pure conversion behind Recording.IndexToTime.
func IndexToTime(m Metadata, i int) float64 {
	return m.StartTime + float64(i)/m.SamplingFrequency
}
