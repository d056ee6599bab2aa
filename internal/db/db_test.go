package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, RunMigrations(ctx, conn, "../../migrations"))
	require.NoError(t, RunMigrations(ctx, conn, "../../migrations"))

	var applied int
	require.NoError(t, conn.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, applied)

	var tables int
	require.NoError(t, conn.GetContext(ctx, &tables,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'kv_store'`))
	assert.Equal(t, 1, tables)
}

func TestRunMigrations_MissingDir(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Error(t, RunMigrations(ctx, conn, "./does-not-exist"))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://intake:xxxxx@db:5432/intake?sslmode=disable",
		redactDSN("postgres://intake:s3cret@db:5432/intake?sslmode=disable"))
	assert.Equal(t, "postgres", redactDSN("host=db user=intake"))
}

func TestNewPostgres_EmptyDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), "")
	assert.Error(t, err)
}
