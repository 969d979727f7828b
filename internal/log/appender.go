package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// MultiWriter fans log output out to every appender. A failing appender does
// not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// AddFileAppender appends a size-rotated log file.
func (m *MultiWriter) AddFileAppender(fc FileConfig) *MultiWriter {
	return m.Add(&lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,  // megabytes
		MaxBackups: fc.MaxBackups, // files
		MaxAge:     fc.MaxAgeDays, // days
		Compress:   fc.Compress,
	})
}

// Len returns the number of appenders.
func (m *MultiWriter) Len() int { return len(m.writers) }
