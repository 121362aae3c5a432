package db

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowThreshold marks queries worth a warning.
const DefaultSlowThreshold = 200 * time.Millisecond

// GormLogrusLogger routes GORM's logging through logrus. Query traces are debug
// lines, slow queries are warnings and failed queries are errors. A missing row
// is an answer, not a failure, so it is never logged as an error.
type GormLogrusLogger struct {
	logger        *logrus.Logger
	slowThreshold time.Duration
	level         logger.LogLevel
}

// NewGormLogrusLogger creates a GORM logger at logger.Info over baseLogger.
func NewGormLogrusLogger(baseLogger *logrus.Logger) *GormLogrusLogger {
	return &GormLogrusLogger{
		logger:        baseLogger,
		slowThreshold: DefaultSlowThreshold,
		level:         logger.Info,
	}
}

// WithSlowThreshold returns a copy that warns about queries slower than d.
func (l *GormLogrusLogger) WithSlowThreshold(d time.Duration) *GormLogrusLogger {
	c := *l
	c.slowThreshold = d
	return &c
}

// LogMode implements logger.Interface. It returns a copy at level.
func (l *GormLogrusLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *GormLogrusLogger) entry(ctx context.Context, kind string) *logrus.Entry {
	return l.logger.WithContext(ctx).WithFields(logrus.Fields{
		"source": "gorm",
		"type":   kind,
	})
}

// Info implements logger.Interface
func (l *GormLogrusLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.entry(ctx, "query_info").Debugf(msg, args...)
	}
}

// Warn implements logger.Interface
func (l *GormLogrusLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.entry(ctx, "query_warn").Warnf(msg, args...)
	}
}

// Error implements logger.Interface
func (l *GormLogrusLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.entry(ctx, "query_error").Errorf(msg, args...)
	}
}

// Trace implements logger.Interface
func (l *GormLogrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	log := l.entry(ctx, "query_trace").WithFields(logrus.Fields{
		"rows":     rows,
		"sql":      sql,
		"duration": elapsed.String(),
	})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		log.WithError(err).Error("Database query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		log.WithField("threshold", l.slowThreshold.String()).Warn("Slow query detected")
	case l.level >= logger.Info:
		log.Debug("Database query executed")
	}
}
