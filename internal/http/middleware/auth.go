package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextSessionIDKey = "sessionID"
	ContextSubjectKey   = "subject"
	ContextTokenKey     = "token"
)

// SessionCookie имя cookie с токеном сессии дашборда.
const SessionCookie = "dashboard_session"

// TokenFromRequest достаёт токен из заголовка Authorization или из cookie сессии.
func TokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware пропускает только запросы с действующей сессией дашборда.
func AuthMiddleware(auth service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c)
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		claims, err := auth.Verify(c.Request.Context(), raw)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextSessionIDKey, claims.ID)
		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextTokenKey, raw)
		c.Next()
	}
}
