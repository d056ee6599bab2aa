package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/client-intake/internal/http/response"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/intake/sessions/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			c.Abort()
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			c.Abort()
			return
		}

		c.Next()
	}
}

// IndexValidator проверяет, что параметр является неотрицательным целым,
// и кладёт его значение в контекст под тем же именем.
func IndexValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param(paramName))
		if err != nil || n < 0 {
			response.BadRequest(c, "параметр "+paramName+" должен быть неотрицательным целым")
			c.Abort()
			return
		}

		c.Set(paramName, n)
		c.Next()
	}
}
