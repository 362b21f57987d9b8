package xlog

import (
	"github.com/qixi7/xchan/xcontainer/channel"
	"go.uber.org/zap"
)

func init() {
	channel.SetWarnLogger(Warnf)
}

func Debug(v ...interface{}) {
	getSugar().Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	getSugar().Debugf(format, v...)
}

func Info(v ...interface{}) {
	getSugar().Info(v...)
}

func InfoF(format string, v ...interface{}) {
	getSugar().Infof(format, v...)
}

func Warn(v ...interface{}) {
	getSugar().Warn(v...)
}

func Warnf(format string, v ...interface{}) {
	getSugar().Warnf(format, v...)
}

func Error(v ...interface{}) {
	getSugar().Error(v...)
}

func Errorf(format string, v ...interface{}) {
	getSugar().Errorf(format, v...)
}

// ErrorfSkip reports the caller skip frames above the caller of ErrorfSkip.
func ErrorfSkip(skip int, format string, v ...interface{}) {
	getSugar().WithOptions(zap.AddCallerSkip(skip)).Errorf(format, v...)
}

// Fatal 只记录, 不退出进程
func Fatal(v ...interface{}) {
	getSugar().Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	getSugar().Fatalf(format, v...)
}

func Sync() error {
	return GetZapLogger().Sync()
}

// Close flushes and closes the file logger set up by Init and falls back
// to console logging.
func Close() {
	_ = Sync()
	old := swapFileLogger(nil)
	setLogger(zap.New(consoleCore(), zap.AddCaller(), zap.AddCallerSkip(1), zap.WithFatalHook(noExitHook{})))
	if old != nil {
		_ = old.Close()
	}
}
