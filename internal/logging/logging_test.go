package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewValidatesLevelAndFormat(t *testing.T) {
	if _, err := New("info", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := New("debug", "console"); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With("component", "graduation")
	l.Debug("start", "operation", "graduate_seedling")
	l.Info("done")
	l.Warn("rejected", "error", "invalid_state")
	l.Error("failed")
	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[2].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[2].Level)
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "graduation" || fields["operation"] != "graduate_seedling" {
		t.Fatalf("unexpected fields %v", fields)
	}
	Nop().Info("discarded")
}
