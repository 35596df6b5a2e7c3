// Package internal provides the App struct that wires the taskledger
// components together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/taskledger/internal/cli"
	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/internal/observability"
	"github.com/valter-silva-au/taskledger/internal/storage"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// HomeEnv overrides base path discovery.
const HomeEnv = "TASKLEDGER_HOME"

// App holds all service dependencies.
type App struct {
	BasePath string
	Config   *models.Config

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Logging
	Logger   *slog.Logger
	LogLevel *slog.LevelVar

	// Storage layer
	Store core.TaskStore

	// Core services
	Lifecycle core.LifecycleService

	// Observability, nil when events are disabled.
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// Option customises NewApp.
type Option func(*appOptions)

type appOptions struct {
	logOutput io.Writer
}

// WithLogOutput sends operational logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *appOptions) { o.logOutput = w }
}

// NewApp loads configuration from basePath, opens the configured store and
// wires the lifecycle service and its observers into the CLI.
func NewApp(ctx context.Context, basePath string, opts ...Option) (*App, error) {
	o := appOptions{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	level, _ := core.ParseLogLevel(cfg.Log.Level)
	app.Logger, app.LogLevel = observability.NewLogger(o.logOutput, level, cfg.Log.Format)

	// --- Storage layer ---
	app.Store, err = storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	app.Logger.Debug("task store opened", "backend", cfg.Store.Backend)

	// --- Observability ---
	var recorder core.EventLogger
	if cfg.Events.Enabled {
		app.EventLog, err = observability.NewJSONLEventLog(cfg.Events.Path)
		if err != nil {
			// Non-fatal: the lifecycle works without an audit trail.
			app.Logger.Warn("event log disabled", "path", cfg.Events.Path, "error", err)
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		recorder = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.AlertThresholds{
			BlockedHours: cfg.Alerts.BlockedHours,
			PausedDays:   cfg.Alerts.PausedDays,
			StaleDays:    cfg.Alerts.StaleDays,
			MaxUnclaimed: cfg.Alerts.MaxUnclaimed,
		})
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Alerts.SlackWebhookURL != "" {
		var opts []observability.SlackOption
		if cfg.Alerts.TaskURL != "" {
			opts = append(opts, observability.WithTaskURL(cfg.Alerts.TaskURL))
		}
		app.Notifier = observability.NewSlackNotifier(cfg.Alerts.SlackWebhookURL, opts...)
	}

	// --- Core services ---
	app.Lifecycle = core.NewLifecycleService(app.Store, recorder, core.WithLogger(app.Logger))

	// --- Wire CLI package-level variables ---
	cli.Lifecycle = app.Lifecycle
	cli.DefaultActor = cfg.Actor
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.LogLevel = app.LogLevel

	return app, nil
}

// Close releases the store and the event log file handle.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = fmt.Errorf("closing task store: %w", err)
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing event log: %w", err)
		}
	}
	return firstErr
}

// ResolveBasePath determines the directory holding .taskledger.yaml. It
// checks TASKLEDGER_HOME, then walks up from the working directory, and
// falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}
