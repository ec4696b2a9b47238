// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"github.com/spf13/cobra"

	"github.com/ManuGH/meamovie/internal/config"
	"github.com/ManuGH/meamovie/internal/daemon"
	"github.com/ManuGH/meamovie/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured recording as a live movie over HTTP",
		Long: "Open the configured recording, start playback state on the host loop and serve the HTTP API.\n" +
			"SIGHUP or editing the config file reloads render, overlay, playback and log settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return daemon.Serve(cmd.Context(), config.NewLoader(opts.configPath, version.Version))
		},
	}
}
