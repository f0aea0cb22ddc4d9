// Package logging builds the process-wide logger. Production environments log
// JSON for ingestion; development keeps the human-readable text format.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a configured logger. Unknown levels fall back to info.
func New(level, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(ParseLevel(level))
	if environment != "development" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// ParseLevel converts a config level string to a logrus level.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
