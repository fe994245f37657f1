package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Level is a log verbosity threshold.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelTrace || l > LevelError {
		return "INFO"
	}
	return levelNames[l]
}

// ParseLevel converts a level name (case-insensitive) to a Level.
// Empty or unknown names default to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
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

// Logger writes levelled, timestamped lines:
//
//	[HH:MM:SS] [INFO] message
//
// Levels are coloured only when the writer is a terminal. A nil *Logger
// discards everything.
type Logger struct {
	w     io.Writer
	level Level
	color bool
	mu    sync.Mutex
	now   func() time.Time
}

// NewLogger creates a Logger writing to w at the given minimum level.
func NewLogger(w io.Writer, level Level) *Logger {
	return &Logger{w: w, level: level, color: isTerminal(w), now: time.Now}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Level returns the minimum level written.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError + 1
	}
	return l.level
}

func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil || l.w == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	name := level.String()
	if l.color {
		name = levelColor(level)(name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[%s] [%s] %s\n", l.now().Format("15:04:05"), name, msg)
}

func levelColor(level Level) func(a ...interface{}) string {
	switch level {
	case LevelTrace:
		return color.New(color.FgHiBlack).SprintFunc()
	case LevelDebug:
		return Cyan
	case LevelWarn:
		return Yellow
	case LevelError:
		return Red
	default:
		return color.New(color.FgBlue).SprintFunc()
	}
}
