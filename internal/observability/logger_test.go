package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(&buf, slog.LevelInfo, "text")

	logger.Debug("hidden")
	logger.Info("task claimed", "task_id", "T-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "task_id=T-1") {
		t.Errorf("expected text attrs, got %q", out)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(&buf, slog.LevelInfo, "JSON")
	logger.Warn("event write failed", "type", "task.claimed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "event write failed" || rec["type"] != "task.claimed" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewLogger_LevelVarAdjustsAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	logger, lv := NewLogger(&buf, slog.LevelWarn, "text")

	logger.Info("before")
	lv.Set(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLevelName(t *testing.T) {
	tests := map[slog.Level]string{
		slog.LevelDebug: "debug",
		slog.LevelInfo:  "info",
		slog.LevelWarn:  "warn",
		slog.LevelError: "error",
		slog.Level(12):  "error",
	}
	for l, want := range tests {
		if got := LevelName(l); got != want {
			t.Errorf("LevelName(%v) = %q, want %q", l, got, want)
		}
	}
}
