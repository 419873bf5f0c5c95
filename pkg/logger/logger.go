// Package logger provides structured logging for the gateway.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry carrying the component name.
type Logger struct {
	*logrus.Entry
}

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "json" or "text". Defaults to text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from the given configuration.
func New(cfg Config) *Logger {
	l := logrus.New()

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Entry: logrus.NewEntry(l)}
}

// NewDefault returns an info-level text logger named after the component.
func NewDefault(component string) *Logger {
	return New(Config{}).Component(component)
}

// Component returns a logger with the component field set.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// Field returns a logger with an extra structured field.
func (l *Logger) Field(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// Err returns a logger with the error attached.
func (l *Logger) Err(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}
