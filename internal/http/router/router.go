package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/config"
	"github.com/ignatzorin/client-intake/internal/http/handlers"
	"github.com/ignatzorin/client-intake/internal/http/middleware"
	"github.com/ignatzorin/client-intake/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	auth service.Authenticator,
	authHandler *handlers.AuthHandler,
	intakeHandler *handlers.IntakeHandler,
	dashboardHandler *handlers.DashboardHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	jsonLimit := middleware.BodyLimit(1 << 20)

	// Форма клиента (публичная)
	intake := api.Group("/intake")
	{
		intake.GET("/options", intakeHandler.Options)
		intake.POST("/sessions", jsonLimit, intakeHandler.Open)

		session := intake.Group("/sessions/:id", middleware.UUIDValidator("id"))
		session.GET("", intakeHandler.Get)
		session.PUT("/fields", jsonLimit, intakeHandler.Edit)
		session.POST("/advance", jsonLimit, intakeHandler.Advance)
		session.POST("/retreat", intakeHandler.Retreat)
		session.POST("/resume", jsonLimit, intakeHandler.Resume)
		session.POST("/draft", intakeHandler.SaveDraft)
		session.POST("/assets", intakeHandler.UploadAsset)
		session.GET("/review", intakeHandler.Review)
		session.POST("/submit",
			middleware.RateLimitMiddleware("submit", cfg.RateLimitLimit, cfg.RateLimitPeriod),
			jsonLimit,
			intakeHandler.Submit,
		)
		session.DELETE("", intakeHandler.Close)
	}

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", middleware.RateLimitMiddleware("login", 5, cfg.RateLimitPeriod), jsonLimit, authHandler.Login)
		authGroup.GET("/verify", authHandler.Verify)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// WebSocket проверяет токен сам: браузер не передаёт заголовки при upgrade.
	api.GET("/dashboard/ws", wsHandler.Handle)

	// Защищённые маршруты
	dashboard := api.Group("/dashboard")
	dashboard.Use(middleware.AuthMiddleware(auth))
	{
		dashboard.GET("", dashboardHandler.Get)
		dashboard.POST("/refresh", dashboardHandler.Refresh)
		dashboard.POST("/filters", jsonLimit, dashboardHandler.ApplyFilter)
		dashboard.DELETE("/filters", dashboardHandler.ClearFilter)
		dashboard.PUT("/page/:page", dashboardHandler.ChangePage)

		dashboard.GET("/requests/:index", middleware.IndexValidator("index"), dashboardHandler.View)
		dashboard.GET("/requests/:index/notes", middleware.IndexValidator("index"), dashboardHandler.EditNotes)
		dashboard.DELETE("/requests/:index", middleware.IndexValidator("index"), dashboardHandler.Delete)

		dashboard.POST("/detail/next", dashboardHandler.Next)
		dashboard.POST("/detail/prev", dashboardHandler.Prev)
		dashboard.PUT("/detail/status", jsonLimit, dashboardHandler.SaveStatus)
		dashboard.PUT("/detail/notes", jsonLimit, dashboardHandler.SaveNotes)

		dashboard.GET("/stats", dashboardHandler.Stats)
		dashboard.GET("/projects", dashboardHandler.Projects)
		dashboard.POST("/projects", dashboardHandler.AddProject)
		dashboard.PUT("/projects/:id/progress", jsonLimit, dashboardHandler.UpdateProgress)
		dashboard.GET("/clients", dashboardHandler.Clients)
		dashboard.GET("/settings", dashboardHandler.Settings)

		dashboard.GET("/export", dashboardHandler.Export)
		dashboard.POST("/import", middleware.BodyLimit(cfg.MaxUploadBytes()+1<<20), dashboardHandler.Import)
	}

	return r
}
