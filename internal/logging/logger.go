package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Level gates which log lines are written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps debug|info|warn|error to a Level. Unknown values fall back to info.
func ParseLevel(v string) Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Logger is a level-aware wrapper around *log.Logger. A nil *Logger discards everything.
type Logger struct {
	std   *log.Logger
	level Level
}

// New creates a Logger writing to w with the given component prefix, e.g. "[chatrelayd] ".
func New(w io.Writer, prefix string, level Level) *Logger {
	return &Logger{
		std:   log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
		level: level,
	}
}

// Discard returns a logger that drops all output.
func Discard() *Logger {
	return New(io.Discard, "", LevelError+1)
}

// Named returns a logger sharing the same writer and level under a different prefix.
func (l *Logger) Named(prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		std:   log.New(l.std.Writer(), prefix, l.std.Flags()),
		level: l.level,
	}
}

// Std exposes the underlying logger for libraries that want a *log.Logger.
func (l *Logger) Std() *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l.std
}

func (l *Logger) Level() Level {
	if l == nil {
		return LevelError + 1
	}
	return l.level
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG ", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "WARN ", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR ", format, args...) }

func (l *Logger) logf(level Level, tag, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	_ = l.std.Output(3, tag+fmt.Sprintf(format, args...))
}
