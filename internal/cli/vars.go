package cli

import (
	"log/slog"

	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/internal/observability"
)

// Lifecycle is the task lifecycle service, set during app initialization in
// app.go.
var Lifecycle core.LifecycleService

// DefaultActor is the configured actor id used when --actor is not given.
var DefaultActor string

// Observability service instances, set during app initialization in app.go.
// They are nil when the event log is disabled.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

// LogLevel controls the operational logger's verbosity at runtime.
var LogLevel *slog.LevelVar
