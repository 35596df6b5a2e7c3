// Package observability provides the operational logger, the lifecycle
// event log, and the metrics and alerts derived from it. Events are stored
// as JSON Lines and metrics are computed on demand by replaying them.
package observability
