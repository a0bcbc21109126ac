// Package debug gates verbose pipeline tracing behind a process-wide switch,
// the same shape as the teacher's internal/debug package, feeding a
// structured logrus logger instead of log.Printf so callers get leveled,
// field-tagged output.
package debug

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  = logrus.New()
)

// Enable turns on debug-level tracing across the pipeline.
func Enable(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	if on {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Enabled reports whether debug tracing is currently on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Logger returns the shared component logger. Components should call
// Logger().WithField("component", "parser") once and keep the *Entry.
func Logger() *logrus.Logger {
	return logger
}

// Component returns a logger entry tagged with the given component name,
// the convention every package in this module follows for its own logging.
func Component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
