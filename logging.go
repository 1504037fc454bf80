package instream

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level logger. Warnings and up by default; set LOGLEVEL=debug to
// see stream state transitions.
var log = newDefaultLogger()

func newDefaultLogger() *zap.SugaredLogger {
	level := zapcore.WarnLevel
	if s := os.Getenv("LOGLEVEL"); s != "" {
		if err := level.Set(s); err != nil {
			level = zapcore.WarnLevel
		}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("instream").Sugar()
}

// SetLogger replaces the package logger. Pass zap.NewNop() to silence the
// package entirely.
func SetLogger(logger *zap.Logger) {
	log = logger.Named("instream").Sugar()
}
