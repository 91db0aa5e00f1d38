// Package config loads, normalizes, and validates drip configuration data.
//
// The file format is TOML restricted to flat top-level keys, mirroring the
// key=value files the appliance has always shipped with. The package supplies
// defaults, expands user paths (including tilde shortcuts), and reports clear
// validation errors so the daemon and CLI receive sanitized values.
package config
