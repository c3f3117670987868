package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gwlsn/mediaconv/internal/browse"
	"github.com/gwlsn/mediaconv/internal/config"
	"github.com/gwlsn/mediaconv/internal/deps"
	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/ffmpeg"
	"github.com/gwlsn/mediaconv/internal/jobs"
	"github.com/gwlsn/mediaconv/internal/logger"
	"github.com/gwlsn/mediaconv/internal/progress"
	"github.com/gwlsn/mediaconv/internal/store"
)

const defaultConfigPath = "config/mediaconv.yaml"

// skipConfig marks commands that never read the config file.
var skipConfig = map[string]string{"skipConfigLoad": "true"}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// resolveConfigPath picks the --config flag, then $CONFIG_PATH, then the default.
func (c *commandContext) resolveConfigPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		return path
	}
	return defaultConfigPath
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.configPath = c.resolveConfigPath()
		cfg, err := config.Load(c.configPath)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid config %s: %w", c.configPath, err)
			return
		}
		if err := logger.Configure(logger.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
		}); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// binaries resolves ffmpeg (required) and ffprobe (optional).
func (c *commandContext) binaries() (ffmpegStatus, ffprobeStatus deps.Status) {
	cfg, _ := c.ensureConfig()
	return deps.ResolveFFmpeg(cfg.FFmpegPath), deps.ResolveFFprobe(cfg.FFprobePath)
}

// ffprober returns nil when ffprobe cannot be found.
func (c *commandContext) ffprober() *ffmpeg.Prober {
	_, ffprobeStatus := c.binaries()
	if !ffprobeStatus.Available {
		return nil
	}
	return ffmpeg.NewProber(ffprobeStatus.Command)
}

// prober is ffprober as a browse.Prober, keeping the interface nil when
// ffprobe is missing.
func (c *commandContext) prober() browse.Prober {
	if p := c.ffprober(); p != nil {
		return p
	}
	return nil
}

// newController wires the engine, channel and optional recorder the way
// both the CLI and the server use them.
func (c *commandContext) newController(ch *events.Channel, recorder jobs.Recorder) (*jobs.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	ffmpegStatus, ffprobeStatus := c.binaries()
	if !ffmpegStatus.Available {
		logger.Warn("ffmpeg not found, conversions will fail", "detail", ffmpegStatus.Detail)
	}

	prober := c.ffprober()
	if prober == nil {
		logger.Warn("ffprobe not found, progress percentages unavailable", "detail", ffprobeStatus.Detail)
	}

	opts := []jobs.Option{
		jobs.WithLabels(progress.LabelsFor(cfg.Locale)),
		jobs.WithProgressInterval(cfg.ProgressInterval()),
		jobs.WithTimeout(cfg.JobTimeout()),
	}
	if recorder != nil {
		opts = append(opts, jobs.WithRecorder(recorder))
	}

	engine := ffmpeg.NewTranscoder(ffmpegStatus.Command, prober)
	return jobs.NewController(engine, ch, opts...), nil
}

// openStore opens the job history database. Callers must close it.
func (c *commandContext) openStore() (*store.SQLiteStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.DBPath())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
