// Package logging wires the process-wide structured logger used by every
// other package in this module.
package logging

import (
	"sync"

	"github.com/charmbracelet/log"
)

var (
	once          sync.Once
	defaultLogger *log.Logger
)

// Default returns the process-wide logger, initializing it on first use.
func Default() *log.Logger {
	once.Do(func() {
		defaultLogger = log.Default()
		defaultLogger.SetTimeFormat("2006-01-02 15:04:05")
		defaultLogger.SetReportCaller(false)
	})
	return defaultLogger
}

// SetLevel adjusts the global log level ("debug", "info", "warn", "none").
func SetLevel(mode string) {
	l := Default()
	switch mode {
	case "debug", "dev", "":
		l.SetLevel(log.DebugLevel)
	case "info", "prod":
		l.SetLevel(log.InfoLevel)
	case "warn":
		l.SetLevel(log.WarnLevel)
	case "none":
		l.SetLevel(log.FatalLevel)
	default:
		l.Warnf("unknown log mode %q, defaulting to info", mode)
		l.SetLevel(log.InfoLevel)
	}
}
