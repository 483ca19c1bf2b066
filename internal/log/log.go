// Package log holds the process wide logger.
package log

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var defaultLogger = zap.NewNop()

// Get returns the process wide logger. It is a no-op logger until Set is
// called.
func Get() *zap.Logger {
	return defaultLogger
}

func Set(logger *zap.Logger) {
	defaultLogger = logger
}

// New builds a logger. A disabled logger discards everything. Verbose
// logging is human readable and includes debug messages; otherwise JSON
// lines at info level are written. An empty path means stderr.
func New(enabled, verbose bool, path string) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}

	logger, err := cfg.Build()
	return logger, errors.WithStack(err)
}

func Flush() {
	_ = defaultLogger.Sync()
}
