package storage

import (
	"context"
	"fmt"

	"coursehub/internal/common/logging"
	"coursehub/internal/storage/postgres"
	"coursehub/internal/storage/sqlite"
)

// NewStorage creates a storage backend from a backend-specific config.
func NewStorage(ctx context.Context, config StorageConfig, logger logging.Logger) (Storage, error) {
	if config == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s storage config: %w", config.Type(), err)
	}

	switch config.Type() {
	case "postgres":
		return postgres.New(ctx, config.(*postgres.Config), logger)
	case "sqlite":
		return sqlite.New(ctx, config.(*sqlite.Config), logger)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type())
	}
}
