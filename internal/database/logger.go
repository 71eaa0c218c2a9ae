package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const defaultSlowThreshold = 200 * time.Millisecond

// zapLogger routes gorm statement logging through zap.
type zapLogger struct {
	log                       *zap.Logger
	SlowThreshold             time.Duration
	LogLevel                  gormlogger.LogLevel
	IgnoreRecordNotFoundError bool
}

// NewLogger returns a gorm logger that reports errors and slow statements.
func NewLogger(log *zap.Logger) gormlogger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapLogger{
		log:                       log,
		SlowThreshold:             defaultSlowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	}
}

func (z *zapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cpy := *z
	cpy.LogLevel = level
	return &cpy
}

func (z *zapLogger) Info(_ context.Context, msg string, args ...any) {
	if z.LogLevel >= gormlogger.Info {
		z.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (z *zapLogger) Warn(_ context.Context, msg string, args ...any) {
	if z.LogLevel >= gormlogger.Warn {
		z.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (z *zapLogger) Error(_ context.Context, msg string, args ...any) {
	if z.LogLevel >= gormlogger.Error {
		z.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (z *zapLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if z.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && z.LogLevel >= gormlogger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !z.IgnoreRecordNotFoundError):
		sql, rows := fc()
		z.log.Debug("sql error",
			zap.String("caller", utils.FileWithLineNum()),
			zap.Error(err),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
		)
	case z.SlowThreshold != 0 && elapsed > z.SlowThreshold && z.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		z.log.Warn("slow sql",
			zap.String("caller", utils.FileWithLineNum()),
			zap.Duration("threshold", z.SlowThreshold),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
		)
	case z.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		z.log.Debug("sql",
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
		)
	}
}
