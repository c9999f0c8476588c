package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. Production config with ISO timestamps;
// LOG_LEVEL=debug switches to development output.
func New(level string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
