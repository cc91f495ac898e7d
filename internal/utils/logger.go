// internal/utils/logger.go

package utils

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var baseLogger = newBaseLogger(InfoLevel)

func newBaseLogger(level LogLevel) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}

	return zerolog.New(consoleWriter).
		Level(toZerologLevel(level)).
		With().
		Timestamp().
		Logger()
}

// SetGlobalLevel adjusts the level for all loggers created afterwards.
// Accepts the usual level names: debug, info, warn, error.
func SetGlobalLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		baseLogger = newBaseLogger(DebugLevel)
	case "warn", "warning":
		baseLogger = newBaseLogger(WarnLevel)
	case "error":
		baseLogger = newBaseLogger(ErrorLevel)
	default:
		baseLogger = newBaseLogger(InfoLevel)
	}
}

func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// zerologAdapter implements Logger on top of a zerolog.Logger.
type zerologAdapter struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger instance at the default level.
func NewLogger() Logger {
	return &zerologAdapter{zl: baseLogger}
}

// NewLoggerWithLevel creates a logger with the specified log level.
func NewLoggerWithLevel(level LogLevel) Logger {
	return &zerologAdapter{zl: baseLogger.Level(toZerologLevel(level))}
}

// NewComponentLogger creates a logger tagged with a component name.
// The component shows up as a structured field so output from different
// subsystems can be told apart.
func NewComponentLogger(component string) Logger {
	return &zerologAdapter{zl: baseLogger.With().Str("component", component).Logger()}
}

func (l *zerologAdapter) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l *zerologAdapter) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *zerologAdapter) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *zerologAdapter) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *zerologAdapter) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *zerologAdapter) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *zerologAdapter) Error(msg string) {
	l.zl.Error().Msg(msg)
}

func (l *zerologAdapter) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l *zerologAdapter) WithField(key string, value interface{}) Logger {
	return &zerologAdapter{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *zerologAdapter) WithFields(fields map[string]interface{}) Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &zerologAdapter{zl: ctx.Logger()}
}
