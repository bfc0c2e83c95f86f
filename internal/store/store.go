// Package store opens the booking storage selected by STORE_DRIVER.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/config"
	"github.com/hackgods/provider-booking/internal/db"
)

// Backend is what the binaries need from storage. Both PgRepository and
// GormRepository satisfy it.
type Backend interface {
	appointment.Repository
	appointment.ProviderDirectory
	appointment.UserWriter
}

type Store struct {
	Backend
	Driver string
	Ping   func(ctx context.Context) error
	Close  func()
}

// Open connects and migrates the configured store.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := db.Migrate(pgCtx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		logger.Info().Msg("connected to Postgres")

		return &Store{
			Backend: appointment.NewPgRepository(pool),
			Driver:  cfg.StoreDriver,
			Ping:    pool.Ping,
			Close:   pool.Close,
		}, nil

	case config.DriverSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := appointment.NewGormRepository(gdb)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")

		return &Store{
			Backend: repo,
			Driver:  cfg.StoreDriver,
			Ping:    repo.Ping,
			Close: func() {
				if sqlDB, err := gdb.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
