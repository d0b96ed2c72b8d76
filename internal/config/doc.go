// Package config loads, normalizes, and validates stemgen configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LALAL_API_KEY. The Config type centralizes every knob the CLI and pipeline
// need: output/cache/log directories, engine settings, scanner priorities,
// and logging format.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
