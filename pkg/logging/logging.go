// Package logging defines the logging interface used throughout modelkit.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the component logging interface. It is satisfied by both
// *logrus.Logger and *logrus.Entry, allowing components to be handed either a
// root logger or a pre-tagged entry.
type Logger interface {
	logrus.FieldLogger
}

// ForComponent returns a logger tagged with the given component name.
func ForComponent(log *logrus.Logger, component string) Logger {
	return log.WithField("component", component)
}

// Discard returns a logger that drops all output. Intended for tests.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
