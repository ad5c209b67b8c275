// Package logging provides a small zap-backed structured logger used by the engine,
// local-area, and solver packages instead of raw fmt.Print calls.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a coarse logging severity, ordered so that lower values are more verbose.
type Level int8

// The four levels the engine logs at. There is no Fatal level: a library should never
// call os.Exit on behalf of its caller.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// AsZap converts a Level to its zapcore equivalent.
func (l Level) AsZap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l Level) String() string {
	return l.AsZap().String()
}

// DefaultTimeFormatStr is the timestamp layout used by the test appender, which logs
// through testing.TB.Log rather than through a zapcore.Encoder.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// callerToString formats a caller the same way zap's short caller encoder does, without
// pulling in an encoder just for the test appender's plain-text line.
func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}

// AtomicLevel is a concurrency-safe Level that can be swapped while loggers are live.
type AtomicLevel struct {
	v atomic.Int32
}

// NewAtomicLevelAt constructs an AtomicLevel pinned at the given starting level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	var a AtomicLevel
	a.v.Store(int32(level))
	return a
}

// Set updates the level.
func (a *AtomicLevel) Set(level Level) { a.v.Store(int32(level)) }

// Get reads the current level.
func (a *AtomicLevel) Get() Level { return Level(a.v.Load()) }

// GlobalLogLevel is the level of the zap logger a Logger's AsZap builds, so verbose logging
// through that zap logger can be turned on process-wide. A Logger's own Debug/Info/Warn/Error
// methods filter on that Logger's level and do not consult it.
var GlobalLogLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Logger is the logging surface used by the engine. It mirrors zap's SugaredLogger
// method set closely enough that callers already familiar with zap feel at home, while
// letting the engine attach extra Appenders (e.g. a test appender) without depending on
// zap's own core plumbing directly.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	AsZap() *zap.SugaredLogger
	Sync() error
}

func newZapConfig() zap.Config {
	return zap.Config{
		Level:    GlobalLogLevel,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
