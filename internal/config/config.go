package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// FFmpegPath is the ffmpeg binary. Empty means bundled sidecar, then PATH.
	FFmpegPath string `yaml:"ffmpeg_path" toml:"ffmpeg_path"`

	// FFprobePath is the ffprobe binary used to read input durations. Empty
	// means the bundled sidecar or PATH.
	FFprobePath string `yaml:"ffprobe_path" toml:"ffprobe_path"`

	// ListenAddr is the HTTP bind address for `serve`
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	// DataDir holds the job history database and the instance lock
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// LogFile, if set, receives a copy of every log line
	LogFile string `yaml:"log_file" toml:"log_file"`

	// Locale selects the progress sentinel strings ("zh" or "en")
	Locale string `yaml:"locale" toml:"locale"`

	// ProgressIntervalMs is the minimum spacing between progress events of one job
	ProgressIntervalMs int `yaml:"progress_interval_ms" toml:"progress_interval_ms"`

	// JobTimeoutSecs bounds a single conversion. 0 disables the deadline.
	JobTimeoutSecs int `yaml:"job_timeout_secs" toml:"job_timeout_secs"`

	// CORSOrigins lists allowed browser origins for the HTTP API
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`

	// BrowseRoot confines the file picker API. Empty means the user's home directory.
	BrowseRoot string `yaml:"browse_root" toml:"browse_root"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:         "", // bundled sidecar or PATH
		FFprobePath:        "",
		ListenAddr:         "127.0.0.1:7390",
		DataDir:            "data",
		LogLevel:           "info",
		LogFormat:          "text",
		Locale:             DefaultLocale,
		ProgressIntervalMs: 500,
		JobTimeoutSecs:     0,
		CORSOrigins:        []string{"http://localhost:3000"},
	}
}

// Load reads config from a YAML or TOML file (chosen by extension), applying
// defaults for missing values. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isTOML(path) {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:7390"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	c.Locale = ValidateLocale(c.Locale)
	if c.ProgressIntervalMs == 0 {
		c.ProgressIntervalMs = 500
	}
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("FFPROBE_PATH"); v != "" {
		c.FFprobePath = v
	}
	if v := os.Getenv("MEDIACONV_DATA"); v != "" {
		c.DataDir = v
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.ProgressIntervalMs < 0 {
		return errors.New("progress_interval_ms must not be negative")
	}
	if c.JobTimeoutSecs < 0 {
		return errors.New("job_timeout_secs must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got %q", c.LogFormat)
	}
	if !IsValidLocale(c.Locale) {
		return fmt.Errorf("locale must be one of %v, got %q", ValidLocales, c.Locale)
	}
	return nil
}

// Save writes the config to a YAML or TOML file (chosen by extension)
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ProgressInterval returns the throttle window for progress events.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMs) * time.Millisecond
}

// JobTimeout returns the per-job deadline (0 = none).
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSecs) * time.Second
}

// ResolvedBrowseRoot returns BrowseRoot, falling back to the home directory
// and then the working directory.
func (c *Config) ResolvedBrowseRoot() string {
	if c.BrowseRoot != "" {
		return c.BrowseRoot
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// DBPath returns the job history database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "mediaconv.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "mediaconv.lock")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
