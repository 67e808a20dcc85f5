package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerNames are the names of all package loggers of lkv.
// InitLoggers and SetLogLevel apply the configured level to each of them.
var LoggerNames = []string{"store", "service", "server", "transport", "client", "cli"}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// lkvLogger implements the ILogger interface on top of a zap logger
type lkvLogger struct {
	name  string
	level atomic.Int32
	sugar *zap.SugaredLogger
}

func (l *lkvLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *lkvLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *lkvLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.sugar.Debugf(format, args...)
	}
}

func (l *lkvLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.sugar.Infof(format, args...)
	}
}

func (l *lkvLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.sugar.Warnf(format, args...)
	}
}

func (l *lkvLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.sugar.Errorf(format, args...)
	}
}

func (l *lkvLogger) Panicf(format string, args ...interface{}) {
	l.sugar.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	baseMu     sync.RWMutex
	baseLogger *zap.Logger
	initOnce   sync.Once
)

// CreateLogger implements the logger.Factory interface.
// All package loggers share one zap core, the level is filtered per package.
func CreateLogger(pkgName string) logger.ILogger {
	baseMu.RLock()
	base := baseLogger
	baseMu.RUnlock()

	if base == nil {
		base = zap.New(newCore("console", nil))
	}

	l := &lkvLogger{
		name:  pkgName,
		sugar: base.Named(pkgName).Sugar(),
	}
	l.level.Store(int32(logger.INFO))
	return l
}

// newCore builds the zap core for the given format ("console" or "json").
// If file is not nil, log lines go to the rotating file instead of stdout.
func newCore(format string, file *lumberjack.Logger) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	if file != nil {
		sink = zapcore.AddSync(file)
	}

	// level filtering happens in lkvLogger, so the core lets everything through
	return zapcore.NewCore(enc, sink, zapcore.DebugLevel)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the zap backed logger factory and applies the configured level.
// The output (format and optional log file) is fixed by the first call.
func InitLoggers(config ServerConfig) error {
	level, err := ParseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	initOnce.Do(func() {
		var file *lumberjack.Logger
		if config.LogFile != "" {
			file = &lumberjack.Logger{
				Filename:   config.LogFile,
				MaxSize:    100, // megabytes
				MaxBackups: 5,
				MaxAge:     28, // days
				Compress:   true,
			}
		}

		baseMu.Lock()
		baseLogger = zap.New(newCore(config.LogFormat, file))
		baseMu.Unlock()

		logger.SetLoggerFactory(CreateLogger)
	})

	applyLevel(level)
	return nil
}

// SetLogLevel changes the level of all lkv loggers at runtime (used for config hot reload).
func SetLogLevel(level string) error {
	l, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	applyLevel(l)
	return nil
}

func applyLevel(level logger.LogLevel) {
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
}

// SyncLoggers flushes buffered log entries.
func SyncLoggers() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}
