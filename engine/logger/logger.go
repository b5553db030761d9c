// Package logger holds the module-wide zap logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the shared logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the shared logger.
// This must be called before any dispatch, gpu or config operations.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Named returns a child of the shared logger scoped to a component name.
func Named(name string) *zap.Logger {
	return Logger().Named(name)
}
