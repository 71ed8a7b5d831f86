// Package logging provides structured logging types and interfaces
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
)

// LogLevel is a zap level restricted to the four severities the CLI exposes
type LogLevel zapcore.Level

const (
	DebugLevel = LogLevel(zapcore.DebugLevel)
	InfoLevel  = LogLevel(zapcore.InfoLevel)
	WarnLevel  = LogLevel(zapcore.WarnLevel)
	ErrorLevel = LogLevel(zapcore.ErrorLevel)
)

var levelNames = map[string]LogLevel{
	"debug":   DebugLevel,
	"info":    InfoLevel,
	"warn":    WarnLevel,
	"warning": WarnLevel,
	"error":   ErrorLevel,
}

func (l LogLevel) String() string {
	switch l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return zapcore.Level(l).CapitalString()
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps unknown values to info so a bad LogConfig never silences the logger
func (l LogLevel) zapLevel() zapcore.Level {
	if l.String() == "UNKNOWN" {
		return zapcore.InfoLevel
	}
	return zapcore.Level(l)
}

// LookupLevel resolves a level name case-insensitively.
// The empty string resolves to InfoLevel.
func LookupLevel(name string) (LogLevel, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return InfoLevel, true
	}
	level, ok := levelNames[name]
	return level, ok
}

// ParseLevel is LookupLevel with unknown names falling back to InfoLevel
func ParseLevel(name string) LogLevel {
	if level, ok := LookupLevel(name); ok {
		return level
	}
	return InfoLevel
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the logging surface the pipeline components depend on.
// Error takes the failure separately so adapters can render it consistently.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// LogConfig holds logger configuration.
// A nil Output means stderr, keeping stdout free for the emitted array.
type LogConfig struct {
	Level      LogLevel
	Output     io.Writer
	TimeFormat string
	// Name is attached to every entry as the logger name
	Name string
	// Fields are attached to every entry
	Fields []Field
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      ParseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.RFC3339,
	}
}

type loggerRef struct{ logger Logger }

var global atomic.Pointer[loggerRef]

// SetGlobalLogger replaces the process-wide logger. A nil logger is ignored.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		return
	}
	global.Store(&loggerRef{logger: logger})
}

// GetGlobalLogger returns the process-wide logger, building a default one on first use
func GetGlobalLogger() Logger {
	if ref := global.Load(); ref != nil {
		return ref.logger
	}
	global.CompareAndSwap(nil, &loggerRef{logger: NewDefaultLogger()})
	return global.Load().logger
}

func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
