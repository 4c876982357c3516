package log

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ContextFields 从ctx中提取附加日志字段（如租户ID）
type ContextFields func(ctx context.Context) logrus.Fields

// SlowQueryLogger gorm日志适配：慢查询与错误走logrus
type SlowQueryLogger struct {
	Threshold time.Duration // 慢查询阈值
	Level     logger.LogLevel
	Fields    ContextFields
}

func NewSlowQueryLogger(threshold time.Duration, level logger.LogLevel, fields ContextFields) *SlowQueryLogger {
	return &SlowQueryLogger{
		Threshold: threshold,
		Level:     level,
		Fields:    fields,
	}
}

func (l *SlowQueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	nl := *l
	nl.Level = level
	return &nl
}

func (l *SlowQueryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= logger.Info {
		l.entry(ctx).Infof(msg, args...)
	}
}

func (l *SlowQueryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= logger.Warn {
		l.entry(ctx).Warnf(msg, args...)
	}
}

func (l *SlowQueryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= logger.Error {
		l.entry(ctx).Errorf(msg, args...)
	}
}

func (l *SlowQueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.entry(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Errorf("%s: %v", sql, err)
	case l.Threshold > 0 && elapsed > l.Threshold && l.Level >= logger.Warn:
		sql, rows := fc()
		l.entry(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Warnf("SLOW QUERY: %s", sql)
	case l.Level >= logger.Info:
		sql, rows := fc()
		l.entry(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Debug(sql)
	}
}

func (l *SlowQueryLogger) entry(ctx context.Context) *logrus.Entry {
	e := logrus.NewEntry(std)
	if l.Fields != nil && ctx != nil {
		e = e.WithFields(l.Fields(ctx))
	}
	return e
}
