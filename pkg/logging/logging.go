// Package logging builds the shared structured logger used by every job.
package logging

import (
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level  string
	Pretty bool
}

// New returns an ectologger backed by zap. Pretty mode uses the console
// development encoder; otherwise JSON production output. The returned flush
// function should be deferred from main.
func New(cfg Config) (ectologger.Logger, func()) {
	var zcfg zap.Config
	if cfg.Pretty {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	zlog, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zlog = zap.NewNop()
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		fields := make([]zap.Field, 0, len(msg.Fields))
		for k, v := range msg.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		switch strings.ToLower(strings.TrimSpace(string(msg.Level))) {
		case "debug":
			zlog.Debug(msg.Message, fields...)
		case "warn", "warning":
			zlog.Warn(msg.Message, fields...)
		case "error", "fatal":
			zlog.Error(msg.Message, fields...)
		default:
			zlog.Info(msg.Message, fields...)
		}
	})

	return logger, func() { _ = zlog.Sync() }
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
