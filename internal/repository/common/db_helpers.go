package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetValue читает значение ключа из kv_store; ErrNotFound если ключа нет.
func GetValue(ctx context.Context, q sqlx.ExtContext, key string) (string, error) {
	var payload string
	query := q.Rebind(`SELECT payload FROM kv_store WHERE name = ?`)

	if err := sqlx.GetContext(ctx, q, &payload, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get value %s: %w", key, err)
	}
	return payload, nil
}

// PutValue записывает значение ключа, перезаписывая предыдущее.
func PutValue(ctx context.Context, e sqlx.ExtContext, key, payload string) error {
	query := e.Rebind(`
		INSERT INTO kv_store (name, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := e.ExecContext(ctx, query, key, payload); err != nil {
		return fmt.Errorf("put value %s: %w", key, err)
	}
	return nil
}

// DeleteValue удаляет ключ; отсутствие ключа не ошибка.
func DeleteValue(ctx context.Context, e sqlx.ExtContext, key string) error {
	query := e.Rebind(`DELETE FROM kv_store WHERE name = ?`)
	if _, err := e.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete value %s: %w", key, err)
	}
	return nil
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
