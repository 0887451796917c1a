// Package mlog defines the logging interface used across the orchestrator.
package mlog

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the common interface every component takes by explicit parameter.
// There is no package-level default: callers that need a logger and have none
// get a NoneLogger, never a nil pointer panic.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	// WithFields returns a new logger carrying additional key/value context;
	// the receiver is left unchanged.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the minimum severity a logger will emit.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel converts a configuration string (e.g. "info") into a Level.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	return 0, fmt.Errorf("not a valid log level: %q", lvl)
}

type contextKey string

const loggerContextKey contextKey = "mlog.logger"

// ContextWithLogger returns a context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts the Logger stored by ContextWithLogger, or a NoneLogger
// if none was attached.
//
//nolint:ireturn
func FromContext(ctx context.Context) Logger {
	if v := ctx.Value(loggerContextKey); v != nil {
		if l, ok := v.(Logger); ok {
			return l
		}
	}

	return &NoneLogger{}
}
