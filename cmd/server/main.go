package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/client-intake/internal/config"
	"github.com/ignatzorin/client-intake/internal/db"
	httpHandlers "github.com/ignatzorin/client-intake/internal/http/handlers"
	httpRouter "github.com/ignatzorin/client-intake/internal/http/router"
	"github.com/ignatzorin/client-intake/internal/intake"
	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/repository"
	"github.com/ignatzorin/client-intake/internal/service"
	"github.com/ignatzorin/client-intake/internal/storage"
	"github.com/ignatzorin/client-intake/internal/validation"
	"github.com/ignatzorin/client-intake/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	log := logger.WithComponent("main")

	// Подключение к хранилищу и миграции.
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("ошибка подключения к хранилищу")
	}
	defer safeClose(dbConn)

	passwordHash, err := dashboardPasswordHash(cfg)
	if err != nil {
		log.WithError(err).Fatal("не удалось подготовить пароль дашборда")
	}

	assetStorage, err := storage.NewAssetStorage(cfg.AssetStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.WithError(err).Fatal("не удалось подготовить файловое хранилище")
	}

	g, gctx := errgroup.WithContext(ctx)

	// Вебсокеты.
	hub := ws.NewHub()
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// Репозитории.
	kvRepo := repository.NewKVRepository(dbConn)
	submissionRepo := repository.NewSubmissionRepository(kvRepo)
	draftRepo := repository.NewDraftRepository(kvRepo)

	// Сервисы.
	cache := service.NewCacheService(gctx)
	notifier := service.NewChangeNotifier(cache, hub)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
	authService := service.NewAuthService(tokenManager, cache, kvRepo, cfg.DashboardUsername, passwordHash)

	deliverer := intake.NewClient(cfg.IntakeEndpointURL, cfg.IntakeTimeout)
	if !deliverer.Enabled() {
		log.Warn("INTAKE_ENDPOINT_URL не задан, заявки сохраняются только локально")
	}

	formService := service.NewFormService(gctx, draftRepo, submissionRepo, deliverer, assetStorage, notifier, service.FormConfig{
		AutosavePeriod: cfg.AutosavePeriod,
		IdleTTL:        cfg.SessionIdleTTL,
		MaxAssets:      int(cfg.MaxAssets),
	})
	g.Go(func() error {
		formService.RunSweeper(gctx, time.Minute)
		return nil
	})

	seedService := service.NewSeedService(submissionRepo, notifier)
	dashboardService := service.NewDashboardService(submissionRepo, seedService, cache, notifier, int(cfg.DashboardPageSize))
	transferService := service.NewTransferService(submissionRepo, notifier)

	// HTTP хэндлеры.
	dashboardHandler := httpHandlers.NewDashboardHandler(dashboardService, transferService, cfg.MaxUploadBytes())
	authHandler := httpHandlers.NewAuthHandler(authService, cfg.IsProduction(), dashboardHandler)
	intakeHandler := httpHandlers.NewIntakeHandler(formService, cfg.MaxUploadBytes())
	wsHandler := httpHandlers.NewWSHandler(hub, authService, cfg.AllowedOrigins)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, httpHandlers.Counters{
		FormSessions:      formService.ActiveSessions,
		DashboardSessions: dashboardHandler.ActiveSessions,
		WSClients:         hub.ClientCount,
	})

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authService, authHandler, intakeHandler, dashboardHandler, wsHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.WithField("port", cfg.HTTPPort).Info("HTTP сервер запущен")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Завершаем сервер и сессии формы при получении сигнала.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("ошибка остановки http сервера")
		}
		formService.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("сервер завершился с ошибкой")
	}
	log.Info("сервер остановлен")
}

// dashboardPasswordHash возвращает bcrypt хэш пароля оператора.
// Открытый пароль из окружения хэшируется при старте.
func dashboardPasswordHash(cfg *config.Config) (string, error) {
	if cfg.DashboardPasswordHash != "" {
		return cfg.DashboardPasswordHash, nil
	}
	if err := validation.ValidatePassword(cfg.DashboardPassword); err != nil {
		if cfg.IsProduction() {
			return "", err
		}
		logger.WithComponent("main").WithError(err).Warn("слабый пароль дашборда")
	}
	return service.HashPassword(cfg.DashboardPassword)
}

// safeClose закрывает соединение с хранилищем.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.WithComponent("main").WithError(err).Warn("ошибка закрытия хранилища")
	}
}
