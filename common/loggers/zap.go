package loggers

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/common"
	"github.com/ceramicnetwork/go-callpush/models"
)

// NewLogger returns the JSON logger shared by the Lambda handler and the scheduler. The level comes from LOG_LEVEL
// (info when unset) and every line carries a "service" field so both processes can be queried together.
func NewLogger() models.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if logLevel := os.Getenv(callpush.Env_LogLevel); len(logLevel) > 0 {
		parsedLevel, err := zap.ParseAtomicLevel(logLevel)
		if err != nil {
			log.Fatalf("loggers: invalid %s %q: %v", callpush.Env_LogLevel, logLevel, err)
		}
		cfg.Level = parsedLevel
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.InitialFields = map[string]interface{}{"service": common.ServiceName}
	return zap.Must(cfg.Build()).Sugar()
}

// NewTestLogger logs human-readable output at debug level.
func NewTestLogger() models.Logger {
	var cfg zap.Config = zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	baseLogger := zap.Must(cfg.Build())
	logger := baseLogger.Sugar()

	return logger
}
