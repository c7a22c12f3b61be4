package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete crew configuration
type Config struct {
	// Root is the directory holding all crew state (teams/, tasks/, logs/).
	// Supports ~ for home directory expansion.
	Root string `mapstructure:"root"`

	// Backends is a comma-separated list of enabled agent backends.
	// Use EnabledBackends to get the parsed list.
	Backends string `mapstructure:"backends"`

	// BackendsFile is the path to an optional backends.yaml that defines
	// or overrides backend launch templates. Empty means <configdir>/backends.yaml.
	BackendsFile string `mapstructure:"backends_file"`

	// TmuxWindows spawns teammates into tmux windows instead of split panes
	TmuxWindows bool `mapstructure:"tmux_windows"`

	// SkipPermissions launches backends with their permission-bypass flag
	SkipPermissions bool `mapstructure:"skip_permissions"`

	// PollIntervalMs is how often watchers poll inboxes (in milliseconds)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`

	// LockTimeoutMs is how long lock acquisition retries before giving up (in milliseconds)
	LockTimeoutMs int `mapstructure:"lock_timeout_ms"`

	// LogLevel is the log level: "debug", "info", "warn", "error"
	LogLevel string `mapstructure:"log_level"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls the log file under <root>/logs
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Root:            "", // Empty means use default: ~/.crew
		Backends:        "claude",
		BackendsFile:    "",
		TmuxWindows:     false,
		SkipPermissions: false,
		PollIntervalMs:  1000,
		LockTimeoutMs:   10000,
		LogLevel:        "info",
		Logging: LoggingConfig{
			Enabled:    true,
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// EnabledBackends returns the parsed backend list. Entries are
// comma-separated, trimmed, and deduplicated preserving order.
func (c *Config) EnabledBackends() []string {
	seen := make(map[string]bool)
	var result []string
	for _, name := range strings.Split(c.Backends, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		result = append(result, name)
	}
	return result
}

// PollInterval returns the watcher poll interval as a time.Duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LockTimeout returns the lock acquisition timeout as a time.Duration
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// ResolveRoot returns the resolved crew root directory.
// If Root is empty, it returns ~/.crew. A leading ~ expands to the
// user's home directory; relative paths resolve against the working
// directory.
func (c *Config) ResolveRoot() string {
	path := c.Root

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".crew"
		}
		return filepath.Join(home, ".crew")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

// ResolveBackendsFile returns the backends.yaml path, defaulting to
// <configdir>/backends.yaml when unset.
func (c *Config) ResolveBackendsFile() string {
	if c.BackendsFile != "" {
		return c.BackendsFile
	}
	return filepath.Join(ConfigDir(), "backends.yaml")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("root", defaults.Root)
	viper.SetDefault("backends", defaults.Backends)
	viper.SetDefault("backends_file", defaults.BackendsFile)
	viper.SetDefault("tmux_windows", defaults.TmuxWindows)
	viper.SetDefault("skip_permissions", defaults.SkipPermissions)
	viper.SetDefault("poll_interval_ms", defaults.PollIntervalMs)
	viper.SetDefault("lock_timeout_ms", defaults.LockTimeoutMs)
	viper.SetDefault("log_level", defaults.LogLevel)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// BindEnv wires the CREW_* environment variables into viper.
// CREW_ROOT, CREW_BACKENDS, CREW_TMUX_WINDOWS, CREW_SKIP_PERMISSIONS,
// CREW_POLL_INTERVAL_MS, CREW_LOCK_TIMEOUT_MS and CREW_LOG_LEVEL map to
// the corresponding config keys.
func BindEnv() {
	viper.SetEnvPrefix("CREW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "crew")
	}
	// Fall back to ~/.config/crew
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crew"
	}
	return filepath.Join(home, ".config", "crew")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
