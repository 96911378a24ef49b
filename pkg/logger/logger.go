package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
	debug bool
)

func init() {
	Init(os.Getenv("ENVIRONMENT"))
}

// Init rebuilds the process logger for the given environment. Development
// gets a console encoder with debug output, everything else JSON at info.
func Init(environment string) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}

	mu.Lock()
	base = l
	sugar = l.Sugar()
	debug = environment == "development"
	mu.Unlock()
}

// Set swaps the process logger, mostly for tests.
func Set(l *zap.Logger) {
	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()
}

// L returns the structured logger for callers that want typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(format string, v ...interface{}) {
	s().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	s().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	mu.RLock()
	enabled := debug
	mu.RUnlock()
	if enabled {
		s().Debugf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	s().Warnf(format, v...)
}

// Infow logs with key/value pairs.
func Infow(msg string, keysAndValues ...interface{}) {
	s().Infow(msg, keysAndValues...)
}

// Warnw logs with key/value pairs.
func Warnw(msg string, keysAndValues ...interface{}) {
	s().Warnw(msg, keysAndValues...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = L().Sync()
}
