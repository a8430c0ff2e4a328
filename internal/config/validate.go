package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if c.Jellyfin.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/cleanarr/config.toml"
		}
		return fmt.Errorf("jellyfin.url is required. Edit %s (create with 'cleanarr config init')", defaultPath)
	}
	if c.Jellyfin.APIKey == "" {
		return errors.New("jellyfin.api_key is required. Set JELLYFIN_API_KEY or edit the config file")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.SimilarityThreshold < 0 || c.Cleanup.SimilarityThreshold > 1 {
		return errors.New("cleanup.similarity_threshold must be between 0 and 1")
	}
	if c.Cleanup.MatchThreshold < 0 || c.Cleanup.MatchThreshold > 1.1 {
		return errors.New("cleanup.match_threshold must be between 0 and 1.1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
