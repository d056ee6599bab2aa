package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/client-intake/internal/repository/common"
)

// KVRepository строковое key/value хранилище поверх таблицы kv_store.
type KVRepository struct {
	db *sqlx.DB
}

// NewKVRepository создаёт репозиторий ключей.
func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get возвращает значение ключа; ok=false если ключа нет.
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := common.GetValue(ctx, r.db, key)
	if errors.Is(err, common.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv repository: %w", err)
	}
	return value, true, nil
}

// Set записывает значение ключа.
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	if err := common.PutValue(ctx, r.db, key, value); err != nil {
		return fmt.Errorf("kv repository: %w", err)
	}
	return nil
}

// SetMany записывает несколько ключей в одной транзакции.
func (r *KVRepository) SetMany(ctx context.Context, values map[string]string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for key, value := range values {
			if err := common.PutValue(ctx, tx, key, value); err != nil {
				return fmt.Errorf("kv repository: %w", err)
			}
		}
		return nil
	})
}

// Delete удаляет ключи в одной транзакции.
func (r *KVRepository) Delete(ctx context.Context, keys ...string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, key := range keys {
			if err := common.DeleteValue(ctx, tx, key); err != nil {
				return fmt.Errorf("kv repository: %w", err)
			}
		}
		return nil
	})
}

// GetJSON читает JSON значение ключа в dest; ok=false если ключа нет.
func (r *KVRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("kv repository: повреждённое значение %s: %w", key, err)
	}
	return true, nil
}

// SetJSON сериализует значение в JSON и записывает его.
func (r *KVRepository) SetJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv repository: не удалось сериализовать %s: %w", key, err)
	}
	return r.Set(ctx, key, string(raw))
}
