package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// NewService builds a logger tagged with the service name so every line
// from a multi-service deployment is attributable.
func NewService(level, service string) (*zap.Logger, error) {
	log, err := New(level)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(service) != "" {
		log = log.With(zap.String("service", service))
	}
	return log, nil
}
