// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads meamovie configuration.
//
// Values resolve with precedence ENV > YAML file > defaults. Environment keys
// use the MEAMOVIE_ prefix and the upper-snake form of the YAML path, so
// render.ringWidth becomes MEAMOVIE_RENDER_RING_WIDTH. The YAML file is parsed
// strictly: unknown keys are an error.
package config
