package storage

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// Open returns the task store selected by cfg.Backend.
func Open(ctx context.Context, cfg models.StoreConfig) (core.TaskStore, error) {
	switch cfg.Backend {
	case models.BackendMemory:
		return NewMemoryStore(), nil
	case models.BackendFile, "":
		return NewFileStore(cfg.Path)
	case models.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("opening task store: unknown backend %q", cfg.Backend)
	}
}
