// Package core contains the task lifecycle logic: the status transition
// rules, the lifecycle service that applies them against a store, the
// progress ledger and configuration loading.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// ConfigFileName is the base name of the configuration file, without extension.
const ConfigFileName = ".taskledger"

// EnvPrefix prefixes every environment variable that overrides configuration.
const EnvPrefix = "TASKLEDGER"

// ConfigurationManager loads and validates taskledger configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading .taskledger.yaml and TASKLEDGER_* environment variables.
type viperConfigManager struct {
	// basePath is the directory where .taskledger.yaml resides. Relative
	// store and event paths are resolved against it.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager rooted at basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *models.Config {
	return &models.Config{
		Store: models.StoreConfig{
			Backend: models.BackendFile,
			Path:    "taskledger.yaml",
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
		Events: models.EventsConfig{
			Enabled: true,
			Path:    ".taskledger_events.jsonl",
		},
		Alerts: models.AlertsConfig{
			BlockedHours: 24,
			PausedDays:   7,
			StaleDays:    3,
			MaxUnclaimed: 10,
		},
	}
}

// LoadConfig reads .taskledger.yaml from the base path and overlays
// environment variables such as TASKLEDGER_STORE_BACKEND. A missing file
// yields the defaults.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.backend", string(def.Store.Backend))
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("events.enabled", def.Events.Enabled)
	v.SetDefault("events.path", def.Events.Path)
	v.SetDefault("alerts.blocked_hours", def.Alerts.BlockedHours)
	v.SetDefault("alerts.paused_days", def.Alerts.PausedDays)
	v.SetDefault("alerts.stale_days", def.Alerts.StaleDays)
	v.SetDefault("alerts.max_unclaimed", def.Alerts.MaxUnclaimed)
	v.SetDefault("alerts.slack_webhook_url", "")
	v.SetDefault("alerts.task_url", "")
	v.SetDefault("actor", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Store.Backend = models.StoreBackend(strings.ToLower(string(cfg.Store.Backend)))
	cfg.Store.Path = cm.resolve(cfg.Store.Path)
	cfg.Events.Path = cm.resolve(cfg.Events.Path)

	return cfg, nil
}

func (cm *viperConfigManager) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cm.basePath, path)
}

// ValidateConfig checks the configuration for invalid values and reports
// every problem at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	switch cfg.Store.Backend {
	case models.BackendMemory:
	case models.BackendFile:
		if cfg.Store.Path == "" {
			errs = append(errs, "store.path must not be empty for the file backend")
		}
	case models.BackendPostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, "store.postgres_dsn must not be empty for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf(
			"store.backend %q is invalid, must be one of: memory, file, postgres",
			cfg.Store.Backend,
		))
	}

	if _, err := ParseLogLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be text or json", cfg.Log.Format))
	}

	if cfg.Events.Enabled && cfg.Events.Path == "" {
		errs = append(errs, "events.path must not be empty when events are enabled")
	}

	for key, v := range map[string]int{
		"alerts.blocked_hours": cfg.Alerts.BlockedHours,
		"alerts.paused_days":   cfg.Alerts.PausedDays,
		"alerts.stale_days":    cfg.Alerts.StaleDays,
		"alerts.max_unclaimed": cfg.Alerts.MaxUnclaimed,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be non-negative, got %d", key, v))
		}
	}

	if u := cfg.Alerts.TaskURL; u != "" && strings.Count(u, "%s") != 1 {
		errs = append(errs, fmt.Sprintf("alerts.task_url %q must contain exactly one %%s for the task id", u))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLogLevel maps a configured level name onto a slog level. An empty
// name means info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q is invalid, must be one of: debug, info, warn, error", name)
	}
}
