// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ManuGH/meamovie/internal/recording"
)

// channelSpikes is one row of the per-channel spike table.
type channelSpikes struct {
	Channel int     `json:"channel"`
	Count   int     `json:"count"`
	RateHz  float64 `json:"rateHz"`
}

// infoReport is what info prints.
type infoReport struct {
	URI         string             `json:"uri"`
	Metadata    recording.Metadata `json:"metadata"`
	DurationSec float64            `json:"durationSec"`
	Electrodes  int                `json:"electrodes"`
	TopChannels []channelSpikes    `json:"topChannels"`
}

func newInfoCmd(opts *rootOptions) *cobra.Command {
	var (
		sf     storeFlags
		asJSON bool
		top    int
	)
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Summarize a recording's metadata and spikes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(opts, &sf)
			if err != nil {
				return err
			}
			group, uri, release, err := openGroup(ctx, cfg, cfg.Store.Group)
			if err != nil {
				return err
			}
			defer release()

			rec, err := recording.Open(ctx, group, recording.WithURI(uri))
			if err != nil {
				return err
			}
			coords, err := rec.ElectrodeLayout(ctx)
			if err != nil {
				return err
			}
			meta := rec.Metadata()
			report := infoReport{
				URI:         uri,
				Metadata:    meta,
				DurationSec: meta.Duration(),
				Electrodes:  len(coords),
				TopChannels: spikeTable(rec.Spikes(), meta.Duration(), top),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printInfo(cmd.OutOrStdout(), report)
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVar(&top, "top", 5, "number of most active channels to list")
	return cmd
}

// spikeTable counts spikes per channel, most active first.
func spikeTable(spikes []recording.Spike, duration float64, top int) []channelSpikes {
	counts := map[int]int{}
	for _, s := range spikes {
		counts[s.Channel]++
	}
	rows := make([]channelSpikes, 0, len(counts))
	for ch, n := range counts {
		row := channelSpikes{Channel: ch, Count: n}
		if duration > 0 {
			row.RateHz = float64(n) / duration
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Channel < rows[j].Channel
	})
	if top >= 0 && len(rows) > top {
		rows = rows[:top]
	}
	return rows
}

func printInfo(w io.Writer, r infoReport) error {
	m := r.Metadata
	lines := []struct {
		k string
		v any
	}{
		{"uri", r.URI},
		{"samples", m.SampleCount},
		{"channels", m.ChannelCount},
		{"electrodes", r.Electrodes},
		{"sampling rate", fmt.Sprintf("%g Hz", m.SamplingFrequency)},
		{"time range", fmt.Sprintf("%g s .. %g s (%g s)", m.StartTime, m.EndTime(), r.DurationSec)},
		{"data min/median/max", fmt.Sprintf("%g / %g / %g", m.DataMin, m.DataMedian, m.DataMax)},
		{"spikes", m.SpikeCount},
	}
	if m.ViewType != "" {
		lines = append(lines, struct {
			k string
			v any
		}{"view type", m.ViewType})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-20s %v\n", l.k+":", l.v); err != nil {
			return err
		}
	}
	if len(r.TopChannels) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "most active channels:"); err != nil {
		return err
	}
	for _, c := range r.TopChannels {
		if _, err := fmt.Fprintf(w, "  ch %-5d %6d spikes  %8.2f Hz\n", c.Channel, c.Count, c.RateHz); err != nil {
			return err
		}
	}
	return nil
}
