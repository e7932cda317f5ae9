// Package logging builds the zap loggers used by the command line tool.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavor.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Development enables the console encoder and caller/stack details.
	Development bool
	// Quiet discards everything.
	Quiet bool
}

// New builds a logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	if opts.Quiet {
		return zap.NewNop(), nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// MustNew is New with a no-op fallback.
func MustNew(opts Options) *zap.Logger {
	logger, err := New(opts)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}
