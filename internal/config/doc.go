// Package config loads, normalizes, and validates imscp configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the IMSCP_LOG_LEVEL environment
// override. Callers receive sanitized paths, canonical modes and clear
// validation errors in one pass.
package config
