package logger

import (
	"context"
	"sync"
	"sync/atomic"
)

//nolint:gochecknoglobals // process-wide logger for code paths without an injected one
var (
	global   atomic.Pointer[Logger]
	setOnce  sync.Once
	initOnce sync.Once
)

// SetGlobal configures the process-wide logger. It must be called once, at startup,
// before any package-level logging function is used.
func SetGlobal(cfg Config) {
	called := false
	setOnce.Do(func() {
		initOnce.Do(func() {})

		l, err := newLogger(cfg)
		if err != nil {
			panic("[logger]: failed to initialize global logger: " + err.Error())
		}
		global.Store(&l)
		called = true
	})
	if !called {
		panic("[logger]: SetGlobal can only be called once")
	}
}

// Global returns the process-wide logger, creating a pretty debug logger on first use
// when SetGlobal was never called.
func Global() Logger {
	if l := global.Load(); l != nil {
		return *l
	}
	initOnce.Do(func() {
		l, err := newLogger(Config{Level: levelDebug, Encoding: EncodingPretty})
		if err != nil {
			panic("[logger]: failed to initialize default logger: " + err.Error())
		}
		global.Store(&l)
	})
	return *global.Load()
}

func Debug(msg any) { Global().Debug(msg) }
func Info(msg any)  { Global().Info(msg) }
func Warn(msg any)  { Global().Warn(msg) }
func Error(msg any) { Global().Error(msg) }
func Fatal(msg any) { Global().Fatal(msg) }

func Infof(format string, args ...any)  { Global().Infof(format, args...) }
func Warnf(format string, args ...any)  { Global().Warnf(format, args...) }
func Errorf(format string, args ...any) { Global().Errorf(format, args...) }

func Warnx(err error)  { Global().Warnx(err) }
func Errorx(err error) { Global().Errorx(err) }
func Fatalx(err error) { Global().Fatalx(err) }

// With returns a child of the global logger carrying the key-value pairs.
func With(keysAndValues ...any) Logger {
	return Global().With(keysAndValues...)
}

// WithContext returns a child of the global logger enriched with ctx metadata.
func WithContext(ctx context.Context) Logger {
	return Global().WithContext(ctx)
}

// Named returns a child of the global logger with a sub-scope name.
func Named(name string) Logger {
	return Global().Named(name)
}

// Sync flushes any buffered log entries from the global logger.
func Sync() error {
	return Global().Sync()
}
