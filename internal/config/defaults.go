package config

const (
	defaultLogDir              = "~/.local/share/cleanarr/logs"
	defaultHistoryPath         = "~/.local/share/cleanarr/history.db"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSimilarityThreshold = 0.8
	defaultMatchThreshold      = 0.8
	defaultWatchedBeforeDays   = -1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Cleanup: Cleanup{
			SimilarityThreshold: defaultSimilarityThreshold,
			MatchThreshold:      defaultMatchThreshold,
			WatchedBeforeDays:   defaultWatchedBeforeDays,
			DeleteFiles:         true,
			AddExclusion:        false,
			CollectEpisodes:     false,
			SafetyGate:          true,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
