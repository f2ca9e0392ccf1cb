package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/journal"
)

// DriverMemory selects the in-memory backend.
const DriverMemory = "memory"

// Open builds the backend selected by cfg.Driver.
func Open(cfg config.JournalConfig, logger *slog.Logger) (journal.Storage, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStorage(), nil
	case DriverMattn, DriverModernc, "":
		return NewSQLiteStorage(&SQLiteConfig{
			Driver:       cfg.Driver,
			Path:         cfg.Path,
			MaxOpenConns: cfg.MaxOpenConns,
			WALMode:      cfg.WALMode,
			BusyTimeout:  cfg.BusyTimeout,
		}, logger)
	default:
		return nil, journal.NewStorageError(cfg.Driver, "open", fmt.Errorf("unsupported journal driver %q", cfg.Driver))
	}
}
