// Package log provides the process-wide logger: logrus behind a small
// interface, a pattern formatter and optional rotating file output.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the global logger, or a stderr logger at info level
// when Init has not run.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger, _ = New(&LoggerConfig{Level: "info"}, os.Stderr)
	}
	return logger
}

// Init builds the global logger from cfg. It writes to stderr plus the
// configured file appender.
func Init(cfg *LoggerConfig) error {
	l, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// New builds a standalone logger writing to out and, when enabled, to the
// configured log file.
func New(cfg *LoggerConfig, out ...io.Writer) (Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	pattern, timeLayout := cfg.Pattern, cfg.Time
	if pattern == "" {
		pattern = DefaultPattern
	}
	if timeLayout == "" {
		timeLayout = DefaultTime
	}

	w := NewMultiWriter()
	for _, o := range out {
		w.Add(o)
	}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file appender requires a path")
		}
		w.AddFileAppender(cfg.File)
	}

	l := logrus.New()
	l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})
	l.SetLevel(level)
	l.SetOutput(w)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}
