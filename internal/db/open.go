package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/client-intake/internal/config"
)

// Open подключается к хранилищу согласно конфигурации и применяет миграции.
func Open(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	var (
		conn *sqlx.DB
		err  error
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		conn, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		conn, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("db: неизвестный драйвер %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
