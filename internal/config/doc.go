// Package config loads, normalizes, and validates fulfill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML (or YAML) files, loads .env files, and honours
// environment fallbacks such as WORKORDER_PASSWORD and BAIDU_OCR_API_KEY. The
// Config type centralizes every knob the run coordinator, the backend clients,
// and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
