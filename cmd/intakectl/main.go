// intakectl обслуживает хранилище заявок из командной строки.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/client-intake/internal/config"
	"github.com/ignatzorin/client-intake/internal/db"
	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/repository"
)

var (
	storeDriver    string
	sqlitePath     string
	databaseURL    string
	migrationsPath string
	logLevel       string
	timeout        time.Duration
)

// rootCmd базовая команда.
var rootCmd = &cobra.Command{
	Use:   "intakectl",
	Short: "Manage stored client intake requests",
	Long: `intakectl reads and changes the client request store used by the intake server.

Connection settings come from the same environment as the server
(STORE_DRIVER, DATABASE_URL, SQLITE_PATH, MIGRATIONS_PATH) and can be
overridden with flags.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel)
		logger.SetTextFormatter()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "driver", "", "Store driver: postgres or sqlite")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite file path")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "", "Migrations directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storeConfig собирает конфигурацию хранилища: окружение, затем флаги.
func storeConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storeDriver != "" {
		cfg.StoreDriver = storeDriver
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
		if storeDriver == "" {
			cfg.StoreDriver = config.DriverSQLite
		}
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if migrationsPath != "" {
		cfg.MigrationsPath = migrationsPath
	}
	return cfg, nil
}

// openStore подключается к хранилищу заявок; close нужно вызвать по завершении.
func openStore(ctx context.Context) (*repository.SubmissionRepository, func(), error) {
	cfg, err := storeConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("intakectl: %w", err)
	}
	closeFn := func() { safeClose(conn) }
	return repository.NewSubmissionRepository(repository.NewKVRepository(conn)), closeFn, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.WithComponent("intakectl").WithError(err).Warn("ошибка закрытия хранилища")
	}
}
