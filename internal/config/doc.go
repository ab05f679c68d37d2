// Package config loads, normalizes, and validates the audiodrop TOML
// configuration.
//
// Values come from three layers applied in order: repository defaults
// (defaults.go), the TOML file (explicit --config path, the per-user file
// under ~/.config/audiodrop, or ./audiodrop.toml), and AUDIODROP_* environment
// variables, which may themselves be supplied through .env files. Paths are
// expanded and made absolute during normalization so downstream packages never
// deal with "~" or relative locations.
package config
