package mzap

import (
	"fmt"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// InitializeLoggerWithError builds the process-wide structured logger. It
// never falls back silently: a broken LOG_LEVEL or zap build failure is
// returned as a wrapped error, and bootstrap.Start aborts on it (§7).
//
//nolint:ireturn
func InitializeLoggerWithError() (mlog.Logger, error) {
	var zapCfg zap.Config

	if os.Getenv("ENV_NAME") == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if val, ok := os.LookupEnv("LOG_LEVEL"); ok && val != "" {
		var lvl zapcore.Level
		if err := lvl.Set(val); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", val, err)
		}

		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapCfg.DisableStacktrace = true

	base, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	sugared := otelzap.New(base).Sugar()

	return &ZapWithTraceLogger{Logger: sugared}, nil
}
