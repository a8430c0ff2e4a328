// Package config loads, normalizes, and validates the Cleanarr
// configuration file. Configuration is TOML; values may be overridden by
// a small set of environment variables (JELLYFIN_API_KEY, RADARR_API_KEY,
// SONARR_API_KEY).
package config
