// Package logging constructs the logrus logger shared by every
// component. One *logrus.Logger is built at startup in main and passed
// down through constructors; nothing in this module reaches for a
// package-level logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger from the LOG_LEVEL / LOG_FORMAT
// environment convention used across the fleet (level one of
// debug|info|warn|error, format one of json|text).
func New(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// Component returns a child entry tagged with the owning component name,
// used to distinguish log lines from the three ingest consumers, the
// judge worker, and the correlator in a single process's output.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
