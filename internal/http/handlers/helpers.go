package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/http/middleware"
	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
)

var errNoSession = errors.New("сессия дашборда не найдена в контексте")

// currentSessionID извлекает jti сессии дашборда из контекста.
func currentSessionID(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextSessionIDKey)
	if !exists {
		return "", errNoSession
	}

	id, ok := raw.(string)
	if !ok || id == "" {
		return "", errNoSession
	}

	return id, nil
}

// indexParam возвращает индекс, проверенный middleware.IndexValidator.
func indexParam(c *gin.Context, name string) int {
	return c.GetInt(name)
}

// bindJSON разбирает тело запроса; ошибка уже приведена к AppError.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело запроса: "+err.Error())
	}
	return nil
}

// fail отвечает ошибкой AppError сразу, остальные ошибки передаёт в middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	if _, ok := apperror.As(err); ok {
		response.Error(c, err)
		return
	}
	_ = c.Error(err)
}
