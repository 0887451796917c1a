// Package mzap adapts go.uber.org/zap (via the uptrace otelzap bridge, so log
// lines pick up the active span automatically) to the mlog.Logger interface.
package mzap

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// ZapWithTraceLogger wraps an otelzap.SugaredLogger behind mlog.Logger.
type ZapWithTraceLogger struct {
	Logger *otelzap.SugaredLogger
	ctx    context.Context
}

func (l *ZapWithTraceLogger) Info(args ...any)  { l.logger().Info(args...) }
func (l *ZapWithTraceLogger) Infof(f string, a ...any) { l.logger().Infof(f, a...) }
func (l *ZapWithTraceLogger) Error(args ...any) { l.logger().Error(args...) }
func (l *ZapWithTraceLogger) Errorf(f string, a ...any) { l.logger().Errorf(f, a...) }
func (l *ZapWithTraceLogger) Warn(args ...any)  { l.logger().Warn(args...) }
func (l *ZapWithTraceLogger) Warnf(f string, a ...any) { l.logger().Warnf(f, a...) }
func (l *ZapWithTraceLogger) Debug(args ...any) { l.logger().Debug(args...) }
func (l *ZapWithTraceLogger) Debugf(f string, a ...any) { l.logger().Debugf(f, a...) }

func (l *ZapWithTraceLogger) logger() otelzap.LoggerWithCtx {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return l.Logger.Ctx(ctx)
}

// WithFields adds structured context to the logger. Leaves the receiver
// unchanged.
//
//nolint:ireturn
func (l *ZapWithTraceLogger) WithFields(fields ...any) mlog.Logger {
	return &ZapWithTraceLogger{
		Logger: l.Logger.With(fields...),
		ctx:    l.ctx,
	}
}

// WithContext binds a context (and therefore its active span) to future log
// calls so trace/span IDs are attached automatically.
//
//nolint:ireturn
func (l *ZapWithTraceLogger) WithContext(ctx context.Context) mlog.Logger {
	return &ZapWithTraceLogger{Logger: l.Logger, ctx: ctx}
}

func (l *ZapWithTraceLogger) Sync() error { return l.Logger.Desugar().Sync() }
