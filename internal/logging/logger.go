// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the global logger is built.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

var global *zap.Logger

// Initialize builds and installs the global logger. Safe to call once at
// startup; later calls replace the previous logger.
func Initialize(cfg Config) error {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "console"
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zcfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	global = l
	return nil
}

// Get returns the global logger, lazily creating a development logger if
// Initialize was never called (keeps tests and ad-hoc tools from panicking).
func Get() *zap.Logger {
	if global == nil {
		global, _ = zap.NewDevelopment()
	}
	return global
}

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
