package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
)

const serviceName = "paylink-backend"

// configFor returns the zap config of env. Unknown environments log like
// production.
func configFor(env environments.Environment) zap.Config {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    jsonEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]interface{}{"service": serviceName, "env": string(env)},
	}

	switch env {
	case environments.Development:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.InitialFields = nil
	case environments.Staging:
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	case environments.Test:
		// discard
		cfg.OutputPaths = []string{}
		cfg.ErrorOutputPaths = []string{}
	default:
		cfg.InitialFields["env"] = string(environments.Production)
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}
