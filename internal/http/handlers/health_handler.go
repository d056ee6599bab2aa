package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Counters источники счётчиков для health check.
type Counters struct {
	FormSessions      func() int
	DashboardSessions func() int
	WSClients         func() int
}

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	db       *sqlx.DB
	counters Counters
}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler(db *sqlx.DB, counters Counters) *HealthHandler {
	return &HealthHandler{db: db, counters: counters}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Counters  map[string]int    `json:"counters"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Проверка подключения к хранилищу
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["store"] = "healthy"
	}

	// Проверка статистики пула соединений
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections > stats.MaxOpenConnections {
		checks["connection_pool"] = "warning: too many connections"
	} else {
		checks["connection_pool"] = "healthy"
	}

	counters := make(map[string]int)
	if h.counters.FormSessions != nil {
		counters["form_sessions"] = h.counters.FormSessions()
	}
	if h.counters.DashboardSessions != nil {
		counters["dashboard_sessions"] = h.counters.DashboardSessions()
	}
	if h.counters.WSClients != nil {
		counters["ws_clients"] = h.counters.WSClients()
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Counters:  counters,
	})
}
