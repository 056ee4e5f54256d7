package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

type writerLogger struct {
	zl zerolog.Logger
}

// NewWriterLogger builds a debug-level logger that writes to an io.Writer.
func NewWriterLogger(w io.Writer) Logger {
	return NewWriterLoggerLevel(w, "debug")
}

// NewWriterLoggerLevel builds a logger that writes console lines to w and
// drops events below level. Unknown levels fall back to info.
func NewWriterLoggerLevel(w io.Writer, level string) Logger {
	if w == nil {
		return NopLogger{}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return writerLogger{zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}
}

func (l writerLogger) write(ev *zerolog.Event, msg string, obj any) {
	if ev == nil {
		return
	}
	if obj != nil {
		ev = ev.Interface("obj", obj)
	}
	ev.Msg(msg)
}

func (l writerLogger) Info(msg string, obj any)  { l.write(l.zl.Info(), msg, obj) }
func (l writerLogger) Warn(msg string, obj any)  { l.write(l.zl.Warn(), msg, obj) }
func (l writerLogger) Debug(msg string, obj any) { l.write(l.zl.Debug(), msg, obj) }
func (l writerLogger) Error(msg string, obj any) { l.write(l.zl.Error(), msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
