package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Jellyfin contains connection settings for the Jellyfin server.
type Jellyfin struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Radarr contains connection settings for the Radarr movie manager.
type Radarr struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Sonarr contains connection settings for the Sonarr series manager.
type Sonarr struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Qbittorrent contains connection settings for the qBittorrent safety check.
type Qbittorrent struct {
	URL          string `toml:"url"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	UseBasicAuth bool   `toml:"use_basic_auth"`
}

// Cleanup contains matching and deletion policy settings.
type Cleanup struct {
	// SimilarityThreshold is the caller-side filter applied to the pure
	// title similarity of selected candidates.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	// MatchThreshold is the score (similarity plus year bonus) a catalog
	// entry must reach to become a candidate.
	MatchThreshold float64 `toml:"match_threshold"`
	// WatchedBeforeDays excludes items watched more recently than this
	// many days. Negative disables the age filter.
	WatchedBeforeDays int  `toml:"watched_before_days"`
	DeleteFiles       bool `toml:"delete_files"`
	AddExclusion      bool `toml:"add_exclusion"`
	CollectEpisodes   bool `toml:"collect_episodes"`
	// SafetyGate skips deletion of media still present in qBittorrent.
	SafetyGate bool `toml:"safety_gate"`
}

// History contains configuration for the run-history audit log.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Cleanarr.
//
// Sections by subsystem:
//   - Paths: log directory (also holds the run lock file)
//   - Jellyfin: playback server connection
//   - Radarr / Sonarr: library manager connections
//   - Qbittorrent: torrent client used for the safety cross-check
//   - Cleanup: matching thresholds and deletion policy
//   - History: SQLite audit log of executed runs
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Jellyfin    Jellyfin    `toml:"jellyfin"`
	Radarr      Radarr      `toml:"radarr"`
	Sonarr      Sonarr      `toml:"sonarr"`
	Qbittorrent Qbittorrent `toml:"qbittorrent"`
	Cleanup     Cleanup     `toml:"cleanup"`
	History     History     `toml:"history"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cleanarr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cleanarr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for a cleanup pass.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// LockPath returns the path of the lock file guarding concurrent passes.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "cleanarr.lock")
}

// LogPath returns the path of the rolling log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "cleanarr.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
