package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestDefaultReturnsSameLoggerInstance(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatal("Default() should return the same logger across calls")
	}
}

func TestSetLevelAdjustsHandlerEnabled(t *testing.T) {
	SetLevel(slog.LevelError)
	h := Default().Handler()
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled once level is raised to error")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should remain enabled")
	}
	SetLevel(slog.LevelInfo) // restore, since the level is process-global
}

func TestWithComponentAddsField(t *testing.T) {
	scoped := WithComponent(Default(), "reader")
	if scoped == Default() {
		t.Fatal("WithComponent should return a derived logger, not the same instance")
	}
}

func TestWithComponentNilBaseUsesDefault(t *testing.T) {
	scoped := WithComponent(nil, "decoder")
	if scoped == nil {
		t.Fatal("WithComponent(nil, ...) should fall back to Default()")
	}
}
