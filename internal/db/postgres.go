package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ignatzorin/client-intake/internal/logger"
)

// Пул рассчитан на одну таблицу kv_store: запросы короткие, записи редкие.
const (
	postgresMaxOpenConns    = 10
	postgresMaxIdleConns    = 2
	postgresConnMaxLifetime = 5 * time.Minute
	postgresConnMaxIdleTime = time.Minute
)

// NewPostgres подключается к PostgreSQL по DSN.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL не задан")
	}

	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться к %s: %w", redactDSN(dsn), err)
	}

	conn.SetMaxOpenConns(postgresMaxOpenConns)
	conn.SetMaxIdleConns(postgresMaxIdleConns)
	conn.SetConnMaxLifetime(postgresConnMaxLifetime)
	conn.SetConnMaxIdleTime(postgresConnMaxIdleTime)

	logger.WithComponent("db").WithField("dsn", redactDSN(dsn)).Info("подключено хранилище postgres")
	return conn, nil
}

// redactDSN убирает пароль из DSN для логов.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return "postgres"
	}
	return u.Redacted()
}
