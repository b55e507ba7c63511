// Package config loads, normalizes, and validates detlab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// DETLAB_FFMPEG. Per-operation settings files (dataset credentials, training
// hyperparameters) are JSON documents owned by the settings package; this
// package covers only the ambient knobs every command shares.
package config
