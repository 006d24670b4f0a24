// Package log is the structured logging facade shared by every dnsxfer
// component. Components accept a Logger through their options; the package
// level helpers forward to a process-wide instance configured at startup.
package log

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Value // holds loggerBox

type loggerBox struct{ Logger }

func init() {
	global.Store(loggerBox{newZapLogger(false, zapcore.InfoLevel)})
}

// Logger defines the dnsxfer logging interface.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// SetLogger replaces the global logger instance.
func SetLogger(l Logger) {
	global.Store(loggerBox{l})
}

// GetLogger returns the current global logger instance.
func GetLogger() Logger {
	return global.Load().(loggerBox).Logger
}

// Configure sets up the global logger based on env and level.
// Any env other than "prod" selects the human-friendly console encoder.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	SetLogger(newZapLogger(env != "prod", lvl))
	return nil
}

// OrNoop returns l, or a logger that discards everything when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	return l
}

// With returns a Logger that adds fields to every entry written through it.
// Fields passed at the call site win over the bound ones.
func With(l Logger, fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	bound := make(map[string]any, len(fields))
	for k, v := range fields {
		bound[k] = v
	}
	if fl, ok := l.(*fieldLogger); ok {
		for k, v := range fl.fields {
			if _, set := bound[k]; !set {
				bound[k] = v
			}
		}
		l = fl.next
	}
	return &fieldLogger{next: l, fields: bound}
}

type fieldLogger struct {
	next   Logger
	fields map[string]any
}

func (l *fieldLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (l *fieldLogger) Info(f map[string]any, msg string)  { l.next.Info(l.merge(f), msg) }
func (l *fieldLogger) Error(f map[string]any, msg string) { l.next.Error(l.merge(f), msg) }
func (l *fieldLogger) Debug(f map[string]any, msg string) { l.next.Debug(l.merge(f), msg) }
func (l *fieldLogger) Warn(f map[string]any, msg string)  { l.next.Warn(l.merge(f), msg) }
func (l *fieldLogger) Panic(f map[string]any, msg string) { l.next.Panic(l.merge(f), msg) }
func (l *fieldLogger) Fatal(f map[string]any, msg string) { l.next.Fatal(l.merge(f), msg) }

// Info logs at info level using the global logger.
func Info(fields map[string]any, msg string) { GetLogger().Info(fields, msg) }

// Error logs at error level using the global logger.
func Error(fields map[string]any, msg string) { GetLogger().Error(fields, msg) }

// Debug logs at debug level using the global logger.
func Debug(fields map[string]any, msg string) { GetLogger().Debug(fields, msg) }

// Warn logs at warn level using the global logger.
func Warn(fields map[string]any, msg string) { GetLogger().Warn(fields, msg) }

// Panic logs at panic level using the global logger.
func Panic(fields map[string]any, msg string) { GetLogger().Panic(fields, msg) }

// Fatal logs at fatal level using the global logger.
func Fatal(fields map[string]any, msg string) { GetLogger().Fatal(fields, msg) }

// zapLogger implements Logger using Uber's zap.
type zapLogger struct {
	base *zap.Logger
}

// newZapLogger returns a logger configured for dev or prod mode with the given level.
func newZapLogger(dev bool, level zapcore.Level) Logger {
	var config zap.Config
	if dev {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Sampling = nil
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "msg"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return &zapLogger{base: logger}
}

func (l *zapLogger) Info(fields map[string]any, msg string) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(fields map[string]any, msg string) {
	l.base.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(fields map[string]any, msg string) {
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(fields map[string]any, msg string) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Panic(fields map[string]any, msg string) {
	l.base.Panic(msg, zapFields(fields)...)
}

func (l *zapLogger) Fatal(fields map[string]any, msg string) {
	l.base.Fatal(msg, zapFields(fields)...)
}

// zapFields converts a field map, rendering errors as strings so that
// zap does not expand them into verbose structures.
func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		if err, ok := v.(error); ok {
			fields = append(fields, zap.String(k, err.Error()))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// noopLogger is a Logger implementation that discards all log messages.
type noopLogger struct{}

func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}
func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Panic(map[string]any, string) {}
func (noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards all log messages.
func NewNoopLogger() Logger {
	return noopLogger{}
}
