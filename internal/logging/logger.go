// Package logging builds the process logger.
package logging

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shindakun/supportdesk/internal/config"
)

const defaultLevel = "info"

// New constructs a zap logger from the logging config.
// "json" (the default) emits structured lines; "console" is for local development.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	return build(cfg, []string{"stdout"})
}

// NewConsole is the terminal logger for CLI commands. It writes console lines to stderr
// so that command output on stdout stays clean.
func NewConsole(level string) (*zap.Logger, error) {
	return build(config.LoggingConfig{Level: level, Format: "console"}, []string{"stderr"})
}

func build(cfg config.LoggingConfig, outputs []string) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.Level)))); err != nil || cfg.Level == "" {
		_ = level.UnmarshalText([]byte(defaultLevel))
	}

	encoding := strings.ToLower(strings.TrimSpace(cfg.Format))
	switch encoding {
	case "", "json":
		encoding = "json"
	case "console":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey:    "message",
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zcfg := zap.Config{
		Level:             level,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	return zcfg.Build()
}

// StdLogger adapts logger for APIs that want a *log.Logger, such as http.Server.ErrorLog
func StdLogger(logger *zap.Logger) *log.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	std, err := zap.NewStdLogAt(logger, zapcore.WarnLevel)
	if err != nil {
		return zap.NewStdLog(logger)
	}
	return std
}
