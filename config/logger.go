package config

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON slog.Logger, at debug level when Debug is set
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// RedisAddress returns the redis settings shared by the queue client and worker
func (c *Config) RedisAddress() (addr, password string, db int) {
	return c.RedisAddr, c.RedisPassword, c.RedisDB
}
