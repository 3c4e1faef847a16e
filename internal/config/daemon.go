package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Daemon holds the Daemon's local configuration: where to reach the
// Coordinator, the loopback IPC port, and watcher tuning knobs.
type Daemon struct {
	CoordinatorURL string `mapstructure:"coordinator_url"`
	IPCPort        int    `mapstructure:"ipc_port"`

	DebounceWindow     time.Duration `mapstructure:"debounce_window_ms"`
	SuppressionWindow  time.Duration `mapstructure:"suppression_window_ms"`
	MaxFileSizeBytes   int64         `mapstructure:"max_file_size_bytes"`
	BlockingHashThreshold int64      `mapstructure:"blocking_hash_threshold_bytes"`

	IgnorePatterns []string `mapstructure:"ignore_patterns"`

	// StateDir is where .rift/metadata.toml's tracked-project history is
	// kept (SPEC_FULL.md supplemented metadata file). Defaults to the
	// user's home directory.
	StateDir string `mapstructure:"state_dir"`

	LogLevel string `mapstructure:"log.level"`
	LogJSON  bool   `mapstructure:"log.json"`
	LogFile  string `mapstructure:"log.file"`
}

// DefaultDaemon returns the daemon design defaults from spec.md §4.2, §5 and
// the supplemented fixed IPC port from the original implementation
// (original_source/mothership-daemon/src/daemon.rs logs "localhost:7525").
func DefaultDaemon() Daemon {
	stateDir, err := os.UserHomeDir()
	if err != nil {
		stateDir = "."
	}
	return Daemon{
		CoordinatorURL:        "http://localhost:8787",
		IPCPort:               7525,
		DebounceWindow:        150 * time.Millisecond,
		SuppressionWindow:     500 * time.Millisecond,
		MaxFileSizeBytes:      50 * 1024 * 1024,
		BlockingHashThreshold: 1024 * 1024,
		IgnorePatterns:        []string{".git", ".rift", ".DS_Store", "*.swp", "*.swo", "*~"},
		StateDir:              stateDir,
		LogLevel:              "info",
	}
}

// LoadDaemon reads configPath (if non-empty) then applies RIFTD_*
// environment overrides on top.
func LoadDaemon(configPath string) (Daemon, error) {
	cfg := DefaultDaemon()

	v := viper.New()
	setDaemonDefaults(v, cfg)
	v.SetEnvPrefix("RIFTD")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal daemon config: %w", err)
	}
	return cfg, nil
}

func setDaemonDefaults(v *viper.Viper, cfg Daemon) {
	v.SetDefault("coordinator_url", cfg.CoordinatorURL)
	v.SetDefault("ipc_port", cfg.IPCPort)
	v.SetDefault("debounce_window_ms", cfg.DebounceWindow)
	v.SetDefault("suppression_window_ms", cfg.SuppressionWindow)
	v.SetDefault("max_file_size_bytes", cfg.MaxFileSizeBytes)
	v.SetDefault("blocking_hash_threshold_bytes", cfg.BlockingHashThreshold)
	v.SetDefault("ignore_patterns", cfg.IgnorePatterns)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("log.json", cfg.LogJSON)
	v.SetDefault("log.file", cfg.LogFile)
}
