// Package logging builds the zap loggers shared by the pipeline stages.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process root logger. Development mode favors readable
// console output for local crawls; production mode emits JSON with
// ISO-8601 timestamps for log shipping.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ForStage derives a child logger named after a pipeline stage. The stage
// also rides along as a field so JSON consumers can filter without parsing
// logger names.
func ForStage(log *zap.Logger, stage string) *zap.Logger {
	return log.Named(stage).With(zap.String("stage", stage))
}
