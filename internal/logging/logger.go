// Package logging sets up the module's default slog logger: a JSON handler
// with a runtime-adjustable level, resolved from (in order of precedence) an
// explicit SetLevel call, the FRAMEPIPE_LOG_LEVEL environment variable, and
// a default of info.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const envLogLevel = "FRAMEPIPE_LOG_LEVEL"

var (
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	global      *slog.Logger
	initOnce    sync.Once
)

type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Default returns the module-wide default logger, initializing it on first
// use.
func Default() *slog.Logger {
	initOnce.Do(func() {
		atomicLevel.set(detectLevel())
		global = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: atomicLevel}))
	})
	return global
}

// SetLevel overrides the current log level at runtime.
func SetLevel(l slog.Level) {
	Default()
	atomicLevel.set(l)
}

func detectLevel() slog.Level {
	switch strings.ToLower(os.Getenv(envLogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger scoped to a pipeline component by
// enriching a base logger with static fields rather than creating a new
// handler per component.
func WithComponent(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = Default()
	}
	return base.With("component", component)
}
