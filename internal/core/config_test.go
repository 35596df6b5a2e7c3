package core

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadConfig tests ---

func TestLoadConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != models.BackendFile {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, models.BackendFile)
	}
	if want := filepath.Join(dir, "taskledger.yaml"); cfg.Store.Path != want {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, want)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if !cfg.Events.Enabled {
		t.Error("Events.Enabled = false, want true")
	}
	if want := filepath.Join(dir, ".taskledger_events.jsonl"); cfg.Events.Path != want {
		t.Errorf("Events.Path = %q, want %q", cfg.Events.Path, want)
	}
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskledger.yaml", `
store:
  backend: postgres
  postgres_dsn: postgres://localhost/tasks
log:
  level: debug
  format: json
events:
  enabled: false
alerts:
  task_url: https://tracker.example.com/tasks/%s
actor: alice
`)
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != models.BackendPostgres {
		t.Errorf("Store.Backend = %q, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.PostgresDSN != "postgres://localhost/tasks" {
		t.Errorf("Store.PostgresDSN = %q", cfg.Store.PostgresDSN)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled = true, want false")
	}
	if cfg.Actor != "alice" {
		t.Errorf("Actor = %q, want alice", cfg.Actor)
	}
	if cfg.Alerts.TaskURL != "https://tracker.example.com/tasks/%s" {
		t.Errorf("Alerts.TaskURL = %q", cfg.Alerts.TaskURL)
	}
	if cfg.Alerts.StaleDays != 3 {
		t.Errorf("Alerts.StaleDays = %d, want default 3", cfg.Alerts.StaleDays)
	}
}

func TestLoadConfig_AbsolutePathKept(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "tasks.yaml")
	writeFile(t, dir, ".taskledger.yaml", "store:\n  path: "+abs+"\n")

	cfg, err := NewConfigurationManager(dir).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Path != abs {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, abs)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskledger.yaml", "store:\n  backend: file\nactor: alice\n")
	t.Setenv("TASKLEDGER_STORE_BACKEND", "MEMORY")
	t.Setenv("TASKLEDGER_ACTOR", "bob")

	cfg, err := NewConfigurationManager(dir).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Backend != models.BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Actor != "bob" {
		t.Errorf("Actor = %q, want bob", cfg.Actor)
	}
}

func TestLoadConfig_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskledger.yaml", "store: [unclosed\n")

	_, err := NewConfigurationManager(dir).LoadConfig()
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), ".taskledger.yaml") {
		t.Errorf("error %q does not name the file", err)
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_Defaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidateConfig_NilConfig_ReturnsError(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestValidateConfig_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Config)
		wantSub string
	}{
		{"unknown backend", func(c *models.Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"file without path", func(c *models.Config) { c.Store.Path = "" }, "store.path"},
		{"postgres without dsn", func(c *models.Config) { c.Store.Backend = models.BackendPostgres }, "store.postgres_dsn"},
		{"bad level", func(c *models.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *models.Config) { c.Log.Format = "xml" }, "log.format"},
		{"events without path", func(c *models.Config) { c.Events.Path = "" }, "events.path"},
		{"negative stale days", func(c *models.Config) { c.Alerts.StaleDays = -1 }, "alerts.stale_days"},
		{"task url without placeholder", func(c *models.Config) { c.Alerts.TaskURL = "https://tracker.example.com/tasks" }, "alerts.task_url"},
	}

	cm := NewConfigurationManager(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cm.ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateConfig_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "nope"
	cfg.Log.Level = "nope"

	err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "store.backend") || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error should list both problems, got %q", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
