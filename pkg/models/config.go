package models

// StoreBackend names a persistence implementation.
type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendFile     StoreBackend = "file"
	BackendPostgres StoreBackend = "postgres"
)

// StoreConfig selects and configures the task store.
type StoreConfig struct {
	Backend     StoreBackend `yaml:"backend" mapstructure:"backend"`
	Path        string       `yaml:"path,omitempty" mapstructure:"path"`
	PostgresDSN string       `yaml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EventsConfig controls the lifecycle audit event log.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
}

// AlertsConfig sets the thresholds for lifecycle alerts and where to send
// them. A zero threshold disables its check.
type AlertsConfig struct {
	BlockedHours    int    `yaml:"blocked_hours" mapstructure:"blocked_hours"`
	PausedDays      int    `yaml:"paused_days" mapstructure:"paused_days"`
	StaleDays       int    `yaml:"stale_days" mapstructure:"stale_days"`
	MaxUnclaimed    int    `yaml:"max_unclaimed" mapstructure:"max_unclaimed"`
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty" mapstructure:"slack_webhook_url"`
	// TaskURL is a format with one %s for the task id, used to link tasks
	// in notifications.
	TaskURL string `yaml:"task_url,omitempty" mapstructure:"task_url"`
}

// Config holds the settings read from .taskledger.yaml and TASKLEDGER_*
// environment variables.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Events EventsConfig `yaml:"events" mapstructure:"events"`
	Alerts AlertsConfig `yaml:"alerts" mapstructure:"alerts"`
	Actor  string       `yaml:"actor,omitempty" mapstructure:"actor"`
}
