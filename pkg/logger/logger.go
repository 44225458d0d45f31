// Package logger is a thin zap facade. The package-level functions log
// through a process-wide sugared logger configured once at startup.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.Mutex
	log *zap.SugaredLogger
)

// Init builds the global logger. env "production" selects the JSON encoder;
// anything else gets the console development config.
func Init(env string) error {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	base, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	log = base.Sugar()
	mu.Unlock()
	return nil
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		base, err := zap.NewDevelopmentConfig().Build(zap.AddCallerSkip(1))
		if err != nil {
			os.Exit(1)
		}
		log = base.Sugar()
	}
	return log
}

func Sync() {
	_ = get().Sync()
}

func Info(msg string, keysAndValues ...any)  { get().Infow(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { get().Warnw(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { get().Errorw(msg, keysAndValues...) }
func Debug(msg string, keysAndValues ...any) { get().Debugw(msg, keysAndValues...) }
func Fatal(msg string, keysAndValues ...any) { get().Fatalw(msg, keysAndValues...) }
