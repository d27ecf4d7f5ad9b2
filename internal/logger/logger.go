package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chainstack-provider/internal/config"
)

// NewLogger creates a zap logger writing to stdout as configured by cfg.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LoggerConfig, out io.Writer) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", cfg.Encoding)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(out)),
		logLevel,
	), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
