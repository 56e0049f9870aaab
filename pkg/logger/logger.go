package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The process logger. Components take module-scoped children via
// WithModule; until Init runs everything goes to a nop logger, so
// package init order never matters.
var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init builds the global logger at the given level. An unknown level
// string falls back to info rather than failing startup, so a config
// typo never silences the process.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	global = built.With(zap.String("service", "durolink"))
	mu.Unlock()

	return nil
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return global
}

// Sync flushes buffered log entries; called once on shutdown.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
// Every subsystem takes one at construction time so log lines can be
// filtered per component.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
