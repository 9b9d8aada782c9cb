package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zing/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// queryLogger sends GORM output to slog. Missing-record lookups are normal
// control flow for the repositories and are never logged as errors.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger(l *slog.Logger, level logger.LogLevel) *queryLogger {
	if l == nil {
		l = observability.Logger
	}
	return &queryLogger{log: l, level: level, slow: slowQuery}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *queryLogger) printf(ctx context.Context, min logger.LogLevel, lvl slog.Level, msg string, args []interface{}) {
	if l.level >= min {
		l.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

// Trace reports failed statements at Error, slow ones at Warn and the rest
// at Info, each gated by the configured level.
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if l.level < logger.Error {
			return
		}
		lvl, msg = slog.LevelError, "query failed"
	case l.slow > 0 && elapsed > l.slow:
		if l.level < logger.Warn {
			return
		}
		lvl, msg = slog.LevelWarn, "slow query"
	default:
		if l.level < logger.Info {
			return
		}
		lvl, msg = slog.LevelInfo, "query"
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, lvl, msg, attrs...)
}
