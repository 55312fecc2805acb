// Package logging provides the structured logger shared by every
// subsystem of the i18n engine. It is a thin wrapper over logrus,
// generalized from the request-log-specific internal/logger.Logger
// of the proxy companion this module started from — here it carries
// no request-log sink of its own; each domain store owns its own
// GORM-backed persistence instead.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	entry *logrus.Logger
}

// Config controls level and output format.
type Config struct {
	Level string // "debug" | "info" | "warn" | "error"
	JSON  bool
}

func New(cfg Config) *Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{entry: l}
}

// NewDiscard returns a logger that drops everything, for tests.
func NewDiscard() *Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return &Logger{entry: l}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *Logger) Info(msg string, fields ...logrus.Fields)  { l.log(logrus.InfoLevel, msg, fields) }
func (l *Logger) Debug(msg string, fields ...logrus.Fields) { l.log(logrus.DebugLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...logrus.Fields)  { l.log(logrus.WarnLevel, msg, fields) }

func (l *Logger) Error(msg string, err error, fields ...logrus.Fields) {
	f := logrus.Fields{}
	if len(fields) > 0 {
		f = fields[0]
	}
	if err != nil {
		f["error"] = err.Error()
	}
	l.entry.WithFields(f).Error(msg)
}

func (l *Logger) log(level logrus.Level, msg string, fields []logrus.Fields) {
	if len(fields) > 0 {
		l.entry.WithFields(fields[0]).Log(level, msg)
		return
	}
	l.entry.Log(level, msg)
}

// With returns a child logger carrying a fixed set of fields, used by
// namespace/sync components to tag every line with ns= etc.
func (l *Logger) With(fields logrus.Fields) *Entry {
	return &Entry{entry: l.entry.WithFields(fields)}
}

// Entry is a logger pre-bound to a set of fields.
type Entry struct {
	entry *logrus.Entry
}

func (e *Entry) Info(msg string)  { e.entry.Info(msg) }
func (e *Entry) Debug(msg string) { e.entry.Debug(msg) }
func (e *Entry) Warn(msg string)  { e.entry.Warn(msg) }
func (e *Entry) Error(msg string, err error) {
	if err != nil {
		e.entry.WithField("error", err.Error()).Error(msg)
		return
	}
	e.entry.Error(msg)
}
