// Package logging provides the structured logger used throughout this
// module. The method surface (Info/Infof/Warn/Warnf/Error/Errorf/
// Debug/Debugf/Fatal/Fatalf, WithFields) mirrors this project's
// house style; the implementation is backed by go.uber.org/zap's
// sugared logger rather than hand-rolled formatting.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with fixed service/version fields.
type Logger struct {
	serviceName string
	version     string
	sugar       *zap.SugaredLogger
}

// New builds a Logger for serviceName/version. Output is human-readable
// console encoding when attached to a terminal, JSON otherwise, so logs
// stay greppable once piped to a file or log collector.
func New(serviceName, version string) *Logger {
	encoding := "console"
	if fileInfo, err := os.Stdout.Stat(); err == nil && (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		encoding = "json"
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	sugar := base.Sugar().With("service", serviceName, "version", version)
	return &Logger{serviceName: serviceName, version: version, sugar: sugar}
}

func (l *Logger) Debug(args ...interface{})                  { l.sugar.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{})  { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                   { l.sugar.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})   { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                   { l.sugar.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})   { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                  { l.sugar.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{})  { l.sugar.Errorf(format, args...) }
func (l *Logger) Fatal(args ...interface{})                  { l.sugar.Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...interface{})  { l.sugar.Fatalf(format, args...) }

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// WithFields returns a child logger with fields attached to every entry
// it logs, for request/peer-scoped context (e.g. node id, peer address).
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		serviceName: l.serviceName,
		version:     l.version,
		sugar:       l.sugar.With(args...),
	}
}
