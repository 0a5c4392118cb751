package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/YoshitsuguKoike/procrunner/internal/app"
)

// ZapLogger implements app.Logger on top of a zap sugared logger
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// NewZapLogger builds a console-encoded logger writing to w at the given level
func NewZapLogger(w io.Writer, level app.Level) *ZapLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapLevel(level),
	)
	return &ZapLogger{logger: zap.New(core).Sugar()}
}

// NewZapLoggerFrom wraps an existing zap logger
func NewZapLoggerFrom(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l.Sugar()}
}

func zapLevel(level app.Level) zapcore.Level {
	switch level {
	case app.LevelDebug:
		return zapcore.DebugLevel
	case app.LevelInfo:
		return zapcore.InfoLevel
	case app.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

func (l *ZapLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debugw(msg, keyvals...)
}

func (l *ZapLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Infow(msg, keyvals...)
}

func (l *ZapLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warnw(msg, keyvals...)
}

func (l *ZapLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Errorw(msg, keyvals...)
}

func (l *ZapLogger) With(keyvals ...interface{}) app.Logger {
	return &ZapLogger{logger: l.logger.With(keyvals...)}
}

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
