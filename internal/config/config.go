package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides config file discovery
	EnvConfigPath = "HUNKNAV_CONFIG"
	// RepoConfigFile is looked up in the repository root
	RepoConfigFile = ".hunknav.yaml"

	DefaultHighlightDurationMs = 500
	DefaultRemoteRef           = "origin/main"
	DefaultPreferPRDiff        = true
	DefaultCacheTTLSeconds     = 10
	DefaultWatch               = true

	DefaultLogFile       = ""
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultMaxLogSizeMB  = 10
	DefaultMaxLogBackups = 3
)

// Config holds every user-tunable value
type Config struct {
	HighlightDurationMs int       `yaml:"highlight_duration_ms" validate:"min=0"`
	RemoteRef           string    `yaml:"remote_ref" validate:"required"`
	PreferPRDiff        bool      `yaml:"prefer_pr_diff"`
	CacheTTLSeconds     int       `yaml:"cache_ttl_seconds" validate:"min=0"`
	Watch               bool      `yaml:"watch"`
	LogConfig           LogConfig `yaml:"log_config"`
}

// LogConfig defines configuration for logging
type LogConfig struct {
	LogFile       string `yaml:"log_file,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty" validate:"omitempty,loglevel"`
	LogFormat     string `yaml:"log_format,omitempty" validate:"omitempty,oneof=json console"`
	MaxLogSizeMB  int    `yaml:"max_log_size_mb,omitempty" validate:"min=1"`
	MaxLogBackups int    `yaml:"max_log_backups,omitempty" validate:"min=0"`
}

// NewDefaultConfig returns the built-in configuration
func NewDefaultConfig() *Config {
	return &Config{
		HighlightDurationMs: DefaultHighlightDurationMs,
		RemoteRef:           DefaultRemoteRef,
		PreferPRDiff:        DefaultPreferPRDiff,
		CacheTTLSeconds:     DefaultCacheTTLSeconds,
		Watch:               DefaultWatch,
		LogConfig:           NewDefaultLogConfig(),
	}
}

// NewDefaultLogConfig creates default log configuration
func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		LogFile:       DefaultLogFile,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		MaxLogSizeMB:  DefaultMaxLogSizeMB,
		MaxLogBackups: DefaultMaxLogBackups,
	}
}

// CacheTTL returns the cache time-to-live; zero means entries never expire
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// HighlightDuration returns how long a selected hunk stays highlighted
func (c *Config) HighlightDuration() time.Duration {
	return time.Duration(c.HighlightDurationMs) * time.Millisecond
}

// GetConfigPath finds the config file to load.
// Priority:
// 1. HUNKNAV_CONFIG environment variable
// 2. .hunknav.yaml in the repository root
// 3. hunknav/config.yaml under the user config directory
// Returns "" when none exists.
func GetConfigPath(repoRoot string) string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	var candidates []string
	if repoRoot != "" {
		candidates = append(candidates, filepath.Join(repoRoot, RepoConfigFile))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "hunknav", "config.yaml"))
	}

	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// Load reads the config for repoRoot, falling back to defaults when no file exists
func Load(repoRoot string) (*Config, error) {
	return LoadFile(GetConfigPath(repoRoot))
}

// LoadFile decodes path over the defaults and validates the result.
// An empty path returns the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", path, err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
