// Package config loads Coordinator and Daemon configuration via viper, with
// file → environment override precedence (spec.md §6), grounded in the
// teacher's viper.New()/SetConfigFile()/SetConfigType() idiom
// (internal/labelmutex/policy.go).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Coordinator holds the recognized Coordinator config keys from spec.md §6.
type Coordinator struct {
	BindAddress            string        `mapstructure:"bind_address"`
	Port                   int           `mapstructure:"port"`
	MaxConnections         int           `mapstructure:"max_connections"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout_s"`
	TokenExpirationDays    int           `mapstructure:"token_expiration_days"`
	MaxUsersPerRift        int           `mapstructure:"max_users_per_rift"`
	BroadcastQueueCapacity int           `mapstructure:"broadcast_queue_capacity"`
	DebounceWindow         time.Duration `mapstructure:"debounce_window_ms"`
	EnableChat             bool          `mapstructure:"enable_feature.chat"`
	EnableUploads          bool          `mapstructure:"enable_feature.uploads"`

	StorageBackend string `mapstructure:"storage.backend"` // "mysql" or "dolt"
	StorageDSN     string `mapstructure:"storage.dsn"`
	BlobRoot       string `mapstructure:"storage.blob_root"`

	LogLevel string `mapstructure:"log.level"`
	LogJSON  bool   `mapstructure:"log.json"`
	LogFile  string `mapstructure:"log.file"`
}

// DefaultCoordinator returns the design defaults called out in spec.md §4.1
// and §5.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		BindAddress:            "0.0.0.0",
		Port:                   8787,
		MaxConnections:         1000,
		RequestTimeout:         30 * time.Second,
		TokenExpirationDays:    30,
		MaxUsersPerRift:        64,
		BroadcastQueueCapacity: 1024,
		DebounceWindow:         250 * time.Millisecond,
		StorageBackend:         "mysql",
		BlobRoot:               "./rift-blobs",
		LogLevel:               "info",
	}
}

// LoadCoordinator reads configPath (if non-empty) then applies RIFT_*
// environment overrides on top, matching spec.md §6 "parse order: file →
// environment overrides".
func LoadCoordinator(configPath string) (Coordinator, error) {
	cfg := DefaultCoordinator()

	v := viper.New()
	setCoordinatorDefaults(v, cfg)
	v.SetEnvPrefix("RIFT")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal coordinator config: %w", err)
	}
	return cfg, nil
}

func setCoordinatorDefaults(v *viper.Viper, cfg Coordinator) {
	v.SetDefault("bind_address", cfg.BindAddress)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("max_connections", cfg.MaxConnections)
	v.SetDefault("request_timeout_s", cfg.RequestTimeout)
	v.SetDefault("token_expiration_days", cfg.TokenExpirationDays)
	v.SetDefault("max_users_per_rift", cfg.MaxUsersPerRift)
	v.SetDefault("broadcast_queue_capacity", cfg.BroadcastQueueCapacity)
	v.SetDefault("debounce_window_ms", cfg.DebounceWindow)
	v.SetDefault("enable_feature.chat", cfg.EnableChat)
	v.SetDefault("enable_feature.uploads", cfg.EnableUploads)
	v.SetDefault("storage.backend", cfg.StorageBackend)
	v.SetDefault("storage.dsn", cfg.StorageDSN)
	v.SetDefault("storage.blob_root", cfg.BlobRoot)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("log.json", cfg.LogJSON)
	v.SetDefault("log.file", cfg.LogFile)
}
