package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds client configuration values.
type Config struct {
	// BaseURL is the SyncNotes backend base URL, e.g. http://localhost:8081.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// WSPath is the realtime endpoint path on the backend.
	WSPath string `mapstructure:"ws_path" yaml:"ws_path"`

	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	HeartBeat      time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	SessionPath string `mapstructure:"session_path" yaml:"session_path"`
	CachePath   string `mapstructure:"cache_path" yaml:"cache_path"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		BaseURL:        "http://localhost:8081",
		WSPath:         "/ws",
		ReconnectDelay: 5 * time.Second,
		HeartBeat:      4 * time.Second,
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		SessionPath:    filepath.Join(dataDir, "session.json"),
		CachePath:      filepath.Join(dataDir, "history.db"),
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".syncnotes"
	}
	return filepath.Join(base, "syncnotes")
}
