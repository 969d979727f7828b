package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"DEBUG", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(&LoggerConfig{Level: tt.level})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if l.IsDebugEnabled() != tt.wantDebug {
				t.Errorf("IsDebugEnabled = %v, want %v", l.IsDebugEnabled(), tt.wantDebug)
			}
			if l.IsInfoEnabled() != tt.wantInfo {
				t.Errorf("IsInfoEnabled = %v, want %v", l.IsInfoEnabled(), tt.wantInfo)
			}
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(&LoggerConfig{Level: "loud"})
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected invalid log level error, got %v", err)
	}
}

func TestPatternFormatter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&LoggerConfig{Level: "info", Pattern: "[%level] %msg {%field}\n"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.WithFields(map[string]interface{}{"seq": 3, "source": "words"}).Info("decoded")
	l.Debug("hidden")
	l.WithError(errors.New("boom")).Warn("failed")

	want := "[info] decoded {seq=3,source=words}\n[warning] failed {error=boom}\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speadcap.log")
	var buf bytes.Buffer

	l, err := New(&LoggerConfig{
		Level:   "info",
		Pattern: "%msg\n",
		File:    FileConfig{Enabled: true, Path: path, MaxSizeMB: 1, MaxBackups: 1},
	}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("to both")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if string(data) != "to both\n" || buf.String() != "to both\n" {
		t.Errorf("file=%q stream=%q", data, buf.String())
	}
}

func TestFileAppenderRequiresPath(t *testing.T) {
	_, err := New(&LoggerConfig{File: FileConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected error for missing file path")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestMultiWriterKeepsWriting(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := w.Write([]byte("x"))
	if n != 1 || err == nil {
		t.Errorf("Write = (%d, %v), want (1, error)", n, err)
	}
	if a.String() != "x" || b.String() != "x" {
		t.Errorf("appenders not all written: %q %q", a.String(), b.String())
	}
	if w.Len() != 3 {
		t.Errorf("Len = %d, want 3", w.Len())
	}
}

func TestGetLoggerFallback(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger returned nil")
	}
	if err := Init(&LoggerConfig{Level: "debug"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !GetLogger().IsDebugEnabled() {
		t.Error("expected Init to replace the global logger")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.IsInfoEnabled() {
		t.Error("discard logger should not enable info")
	}
	l.WithField("k", "v").Error("dropped")
}
