// Package logger holds the process-wide zap logger. Components take a
// named child of it so every line carries its origin, e.g. vibebot.music.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const rootName = "vibebot"

// Logger is a global logger instance
var Logger *zap.Logger

// Init initializes the global logger.
// An empty or unknown level falls back to debug in development and info in production.
func Init(env, level string) error {
	l, err := newConfig(env, level).Build()
	if err != nil {
		return err
	}
	Logger = l.Named(rootName)
	return nil
}

func newConfig(env, level string) zap.Config {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			config.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if Logger == nil {
		// not initialized yet, e.g. in tooling commands
		l, _ := zap.NewDevelopment()
		return l.Named(rootName)
	}
	return Logger
}

// Named returns a child of the global logger
func Named(name string) *zap.Logger {
	return Get().Named(name)
}
