// Package store opens the entity store selected by configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/JonMunkholm/rosterimport/internal/store/memory"
	"github.com/JonMunkholm/rosterimport/internal/store/postgres"
	"github.com/JonMunkholm/rosterimport/internal/store/sqlite"
)

// Backend is a core.Store with a lifecycle.
type Backend interface {
	core.Store

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error

	// Close releases connections.
	Close() error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*memory.Store)(nil)
)

// Open connects to the store named by cfg.Driver. When cfg.AutoMigrate is
// set the schema is migrated before Open returns.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	logger := logging.FromContext(ctx)

	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPostgres:
		backend, err = postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err == nil {
			logger.Info("connected to postgres",
				"database", postgres.DatabaseName(cfg.DatabaseURL),
				"max_conns", cfg.MaxConns)
		}
	case config.DriverSQLite:
		backend, err = sqlite.Open(cfg.SQLitePath)
		if err == nil {
			logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		}
	case config.DriverMemory:
		backend = memory.New()
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := backend.Migrate(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
		}
		logger.Info("store migrations applied", "driver", cfg.Driver)
	}
	return backend, nil
}
