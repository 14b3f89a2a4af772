package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"buildvault/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "buildvault.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives terminal output; nil means stderr so stdout stays free
	// for reports.
	Writer io.Writer
	// FilePath, when set, additionally receives every record as JSON.
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(writer, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(writer, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if strings.TrimSpace(opts.FilePath) == "" {
		return slog.New(primary), nil
	}
	file, err := openLogFile(opts.FilePath)
	if err != nil {
		return nil, err
	}
	return slog.New(newFanoutHandler(primary, newJSONHandler(file, levelVar, addSource))), nil
}

// NewFromConfig creates a logger from the [logging] section, writing a JSON
// copy into the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
