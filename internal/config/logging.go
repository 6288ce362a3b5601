package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogConfig controls the slog handler
type LogConfig struct {
	Level slog.Level

	// JSON selects the JSON handler instead of key=value text
	JSON bool
}

// loadLogConfig loads logging configuration
func (c *Config) loadLogConfig() error {
	if err := c.Log.Level.UnmarshalText([]byte(getEnv("COVERDELTA_LOG_LEVEL", "info"))); err != nil {
		return fmt.Errorf("invalid COVERDELTA_LOG_LEVEL: %w", err)
	}

	switch format := strings.ToLower(getEnv("COVERDELTA_LOG_FORMAT", "text")); format {
	case "text":
		c.Log.JSON = false
	case "json":
		c.Log.JSON = true
	default:
		return fmt.Errorf("invalid COVERDELTA_LOG_FORMAT: %s (must be text or json)", format)
	}

	return nil
}

// NewLogger builds a logger writing to w according to the log configuration
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
