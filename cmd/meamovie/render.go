// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/spf13/cobra"

	"github.com/ManuGH/meamovie/internal/recording"
	"github.com/ManuGH/meamovie/internal/render"
	"github.com/ManuGH/meamovie/internal/viewer"
)

type renderOptions struct {
	store    storeFlags
	out      string
	index    int
	time     float64
	width    int
	height   int
	colormap string
	contrast float64
	rates    bool
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame to a PNG file",
		Long: "Render the sample at --index (or the sample nearest --time) with that sample's spikes ringed.\n" +
			"With --rates the group is read as a firing-rate summary and --index selects the summary frame.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, opts, ro)
		},
	}
	ro.store.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&ro.out, "out", "o", "", "output PNG path")
	f.IntVar(&ro.index, "index", 0, "sample index (or summary frame with --rates)")
	f.Float64Var(&ro.time, "time", math.NaN(), "time in seconds; overrides --index")
	f.IntVar(&ro.width, "width", 0, "canvas width (default render.width)")
	f.IntVar(&ro.height, "height", 0, "canvas height (default render.height)")
	f.StringVar(&ro.colormap, "colormap", "", "colormap (default render.colormap)")
	f.Float64Var(&ro.contrast, "contrast", math.NaN(), "contrast 0-100 (default render.contrast)")
	f.BoolVar(&ro.rates, "rates", false, "render a firing-rate summary group")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runRender(cmd *cobra.Command, opts *rootOptions, ro *renderOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(opts, &ro.store)
	if err != nil {
		return err
	}
	width, height := ro.width, ro.height
	if width <= 0 {
		width = cfg.Render.Width
	}
	if height <= 0 {
		height = cfg.Render.Height
	}
	settings := viewer.Settings{Colormap: cfg.Render.Colormap, Contrast: cfg.Render.Contrast}
	if ro.colormap != "" {
		settings.Colormap = ro.colormap
	}
	if !math.IsNaN(ro.contrast) {
		settings.Contrast = ro.contrast
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	group, uri, release, err := openGroup(ctx, cfg, cfg.Store.Group)
	if err != nil {
		return err
	}
	defer release()
	renderer := render.New(cfg.RenderConfig())

	var (
		img   image.Image
		index = ro.index
	)
	if ro.rates {
		fr, err := recording.OpenFiringRates(ctx, group)
		if err != nil {
			return err
		}
		if img, err = viewer.NewRatesView(fr, renderer, settings.Colormap).Render(ctx, index, width, height); err != nil {
			return err
		}
	} else {
		rec, err := recording.Open(ctx, group, recording.WithURI(uri))
		if err != nil {
			return err
		}
		if !math.IsNaN(ro.time) {
			index = rec.TimeToIndex(ro.time)
		}
		sc, err := viewer.FrameScene(ctx, rec, renderer, index, width, height, settings, cfg.Overlay.PeakOpacity)
		if err != nil {
			if errors.Is(err, recording.ErrIndexOutOfRange) {
				return fmt.Errorf("%w (recording has %d samples)", err, rec.Metadata().SampleCount)
			}
			return err
		}
		img = renderer.Render(ctx, sc)
	}

	if err := render.WritePNGFile(ro.out, img); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, frame %d)\n", ro.out, width, height, index)
	return err
}
