package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger
	level  = zap.NewAtomicLevel()
)

func Init(environment, logLevel string) error {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		level.SetLevel(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		level.SetLevel(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if logLevel != "" {
		if err := SetLevel(logLevel); err != nil {
			return err
		}
	}
	config.Level = level

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"

	var err error
	Logger, err = config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(Logger)

	return nil
}

// SetLevel changes the level of every logger built by Init.
func SetLevel(name string) error {
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func get() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// Named returns a child logger for a component, or a no-op logger before Init.
func Named(component string) *zap.Logger {
	return get().Named(component)
}

func WithRequestID(requestID string) *zap.Logger {
	return Named("http").With(zap.String("request_id", requestID))
}

func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	get().Fatal(msg, fields...)
}
