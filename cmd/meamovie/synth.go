// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/meamovie/internal/arraystore/zarr"
	"github.com/ManuGH/meamovie/internal/synth"
)

type synthOptions struct {
	out        string
	group      string
	ratesGroup string
	spec       string
	compressor string
	level      int
	cfg        synth.Config
}

func newSynthCmd() *cobra.Command {
	so := &synthOptions{cfg: synth.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic recording as a Zarr group",
		Long: "Generate noise on a square electrode grid with injected negative spikes and write it,\n" +
			"plus an optional firing-rate summary group, to a local Zarr directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynth(cmd, so)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&so.out, "out", "o", "", "output Zarr directory")
	f.StringVar(&so.group, "group", "recording", "recording group path")
	f.StringVar(&so.ratesGroup, "rates-group", "rates", "firing-rate summary group path (empty to skip)")
	f.StringVar(&so.spec, "spec", "", "YAML file with generator settings; flags given explicitly win")
	f.StringVar(&so.compressor, "compressor", "zstd", "chunk compressor: zstd, zlib, gzip or none")
	f.IntVar(&so.level, "level", 0, "compression level (0 = codec default)")
	f.IntVar(&so.cfg.GridSize, "grid", so.cfg.GridSize, "electrodes per grid side")
	f.Float64Var(&so.cfg.Spacing, "spacing", so.cfg.Spacing, "electrode pitch")
	f.IntVar(&so.cfg.Samples, "samples", so.cfg.Samples, "timepoints")
	f.Float64Var(&so.cfg.SamplingFrequency, "fs", so.cfg.SamplingFrequency, "sampling frequency in Hz")
	f.Float64Var(&so.cfg.StartTime, "start", so.cfg.StartTime, "start time in seconds")
	f.Float64Var(&so.cfg.NoiseStd, "noise", so.cfg.NoiseStd, "noise standard deviation")
	f.Float64Var(&so.cfg.SpikeRate, "spike-rate", so.cfg.SpikeRate, "spikes per second per channel")
	f.Float64Var(&so.cfg.SpikeAmplitude, "amplitude", so.cfg.SpikeAmplitude, "spike amplitude")
	f.IntVar(&so.cfg.RatesBin, "bin", so.cfg.RatesBin, "samples per firing-rate frame")
	f.Uint64Var(&so.cfg.Seed, "seed", so.cfg.Seed, "random seed")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runSynth(cmd *cobra.Command, so *synthOptions) error {
	cfg := so.cfg
	if so.spec != "" {
		fromFile, err := loadSynthSpec(so.spec)
		if err != nil {
			return err
		}
		cfg = mergeSynthFlags(cmd, fromFile, so.cfg)
	}

	comp, err := compressorFor(so.compressor, so.level)
	if err != nil {
		return err
	}
	d, err := synth.Generate(cfg)
	if err != nil {
		return err
	}
	w, err := zarr.NewWriter(so.out)
	if err != nil {
		return err
	}
	if err := d.WriteZarr(w, so.group, comp); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "wrote %s/%s: %d samples x %d channels, %d spikes\n",
		so.out, so.group, cfg.Samples, cfg.Channels(), len(d.SpikeFrames)); err != nil {
		return err
	}
	if so.ratesGroup == "" {
		return nil
	}
	rates := synth.RatesFromSpikes(d)
	if err := rates.WriteZarr(w, so.ratesGroup, comp); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s/%s: %d frames\n", so.out, so.ratesGroup, rates.Frames)
	return err
}

// loadSynthSpec decodes a generator spec strictly over the defaults.
func loadSynthSpec(path string) (synth.Config, error) {
	cfg := synth.DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read synth spec: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse synth spec %s: %w", path, err)
	}
	return cfg, nil
}

// mergeSynthFlags lets explicitly set flags override the spec file.
func mergeSynthFlags(cmd *cobra.Command, base, flags synth.Config) synth.Config {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("grid") {
		base.GridSize = flags.GridSize
	}
	if set("spacing") {
		base.Spacing = flags.Spacing
	}
	if set("samples") {
		base.Samples = flags.Samples
	}
	if set("fs") {
		base.SamplingFrequency = flags.SamplingFrequency
	}
	if set("start") {
		base.StartTime = flags.StartTime
	}
	if set("noise") {
		base.NoiseStd = flags.NoiseStd
	}
	if set("spike-rate") {
		base.SpikeRate = flags.SpikeRate
	}
	if set("amplitude") {
		base.SpikeAmplitude = flags.SpikeAmplitude
	}
	if set("bin") {
		base.RatesBin = flags.RatesBin
	}
	if set("seed") {
		base.Seed = flags.Seed
	}
	return base
}

func compressorFor(name string, level int) (*zarr.Compressor, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "zstd", "zlib", "gzip":
		return &zarr.Compressor{ID: name, Level: level}, nil
	default:
		return nil, fmt.Errorf("unknown compressor %q (want zstd, zlib, gzip or none)", name)
	}
}
