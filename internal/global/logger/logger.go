package logger

import "gitlab.com/judgeflow.net/internal/adapter/logging"

// Logger is the process-wide logger used by the entry points
var Logger = logging.NewZapLogger()

// Init replaces the process-wide logger with one at the given level
func Init(level string) *logging.ZapLogger {
	Logger = logging.NewZapLoggerWithLevel(level)
	return Logger
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
