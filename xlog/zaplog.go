package xlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how much is logged.
type Config struct {
	Dir        string `toml:"dir" yaml:"dir"`
	Name       string `toml:"name" yaml:"name"`   // 文件名, 空则用可执行文件名
	Level      string `toml:"level" yaml:"level"` // debug/info/warn/error/fatal
	Console    bool   `toml:"console" yaml:"console"`
	MaxSize    int    `toml:"max_size" yaml:"max_size"` // 单位: M
	MaxAge     int    `toml:"max_age" yaml:"max_age"`   // 单位: 天
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

func DefaultConfig() Config {
	return Config{
		Dir:        "./logs",
		Level:      "info",
		Console:    true,
		MaxSize:    64,
		MaxAge:     14,
		MaxBackups: 2,
	}
}

var (
	mu        sync.RWMutex
	zapLogger *zap.Logger
	sugar     *zap.SugaredLogger
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	fileLog   *Logger
)

// fatal 级别只记录不退出进程
type noExitHook struct{}

func (noExitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

func init() {
	setLogger(zap.New(consoleCore(), zap.AddCaller(), zap.AddCallerSkip(1), zap.WithFatalHook(noExitHook{})))
}

func consoleCore() zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
}

func fileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "@timestamp",
		LevelKey:       "loglevel",
		MessageKey:     "msg",
		CallerKey:      "caller",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,  // 小写编码器
		EncodeTime:     zapcore.RFC3339TimeEncoder,     // RFC3339 UTC 时间格式
		EncodeDuration: zapcore.SecondsDurationEncoder, //
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func setLogger(l *zap.Logger) {
	mu.Lock()
	zapLogger = l
	sugar = l.Sugar()
	mu.Unlock()
}

// ParseLevel accepts debug, info, warn, error and fatal.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, errors.Wrapf(err, "xlog: bad level %q", s)
	}
	return lvl, nil
}

// SetLevel changes the level of the running logger.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Init replaces the default console logger with a JSON file logger, plus
// the console when cfg.Console is set.
func Init(cfg Config) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	name := cfg.Name
	if len(name) == 0 {
		name = filepath.Base(os.Args[0])
	}
	if err := os.MkdirAll(cfg.Dir, 0744); err != nil {
		return errors.Wrapf(err, "xlog: make logs dir %s", cfg.Dir)
	}
	fl := NewFileLogger(filepath.Join(cfg.Dir, name+".log"), cfg.MaxSize, cfg.MaxAge, cfg.MaxBackups)

	level.SetLevel(lvl)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), zapcore.AddSync(fl), level),
	}
	if cfg.Console {
		cores = append(cores, consoleCore())
	}

	old := swapFileLogger(fl)
	setLogger(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.WithFatalHook(noExitHook{})))
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func swapFileLogger(fl *Logger) *Logger {
	mu.Lock()
	defer mu.Unlock()
	old := fileLog
	fileLog = fl
	return old
}

// GetZapLogger returns the current structured logger.
func GetZapLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zapLogger
}

func getSugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// FileLogger returns the async file writer set up by Init, or nil.
func FileLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return fileLog
}
