package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "[test] ", ParseLevel("warn"))
	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[test] ") || !strings.Contains(out, "WARN warn 3") || !strings.Contains(out, "ERROR error 4") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("ignored")
	if l.Enabled(LevelError) {
		t.Fatalf("nil logger must not be enabled")
	}
	if l.Std() == nil {
		t.Fatalf("expected a usable std logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRotatingWriterRollsBySizeAndDay(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	w, err := newRotatingWriter(filepath.Join(dir, "relay.log"), 10, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if _, err := w.Write([]byte("12345678")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "relay-2026-10-19.log" {
		t.Fatalf("unexpected first file %s", got)
	}
	if _, err := w.Write([]byte("abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "relay-2026-10-19-2.log" {
		t.Fatalf("expected size rollover, got %s", got)
	}

	now = now.Add(24 * time.Hour)
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "relay-2026-10-20.log" {
		t.Fatalf("expected day rollover, got %s", got)
	}

	b, err := os.ReadFile(filepath.Join(dir, "relay-2026-10-19.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "12345678" {
		t.Fatalf("unexpected first file content %q", b)
	}
}

func TestRotatingWriterDash(t *testing.T) {
	w, err := NewRotatingWriter("-", 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if _, err := w.Write([]byte("discarded")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
