package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log is the global logger instance
var Log *slog.Logger

// level is the dynamic log level, changeable at runtime via SetLevel.
// slog.LevelVar is safe for concurrent use.
var level slog.LevelVar

// Options controls how the global logger is built.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "text" (default) or "json"
	File   string // optional log file, written in addition to stdout
}

// Init initializes the global logger with the specified level and text output on stdout.
func Init(levelStr string) {
	SetLevel(levelStr)
	Log = slog.New(newHandler(os.Stdout, "text"))
}

// Configure builds the global logger from options. On error the previous logger is kept.
func Configure(opts Options) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "text" && format != "json" {
		return fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var w io.Writer = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		w = io.MultiWriter(os.Stdout, f)
	}

	SetLevel(opts.Level)
	Log = slog.New(newHandler(w, format))
	return nil
}

// SetOutput redirects the global logger to w, keeping the current level.
func SetOutput(w io.Writer, format string) {
	Log = slog.New(newHandler(w, format))
}

func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: &level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLevel changes the log level at runtime. Valid values: debug, info, warn, error.
// Invalid values fall back to info.
func SetLevel(levelStr string) {
	level.Set(ParseLevel(levelStr))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CurrentLevel returns the active level name.
func CurrentLevel() string {
	return strings.ToLower(level.Level().String())
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}
