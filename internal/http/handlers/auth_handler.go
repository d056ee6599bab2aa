package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/http/middleware"
	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/service"
)

// SessionEnder освобождает состояние, привязанное к сессии дашборда.
type SessionEnder interface {
	EndSession(sessionID string)
}

// AuthHandler предоставляет HTTP слой для входа в дашборд.
type AuthHandler struct {
	auth         *service.AuthService
	secureCookie bool
	sessions     SessionEnder
}

// NewAuthHandler создаёт хэндлер. sessions может быть nil.
func NewAuthHandler(auth *service.AuthService, secureCookie bool, sessions SessionEnder) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie, sessions: sessions}
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}

	maxAge := int(time.Until(result.Claims.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, result.Token, maxAge, "/", "", h.secureCookie, true)

	response.Success(c, gin.H{
		"token":      result.Token,
		"expires_at": result.Claims.ExpiresAt,
		"login_time": result.LoginTime,
	})
}

// Verify обрабатывает GET /auth/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, err := h.auth.Verify(c.Request.Context(), middleware.TokenFromRequest(c))
	if err != nil {
		fail(c, err)
		return
	}

	data := gin.H{
		"authenticated": true,
		"subject":       claims.Subject,
		"expires_at":    claims.ExpiresAt,
	}
	if loginTime, ok, err := h.auth.LoginTime(c.Request.Context()); err == nil && ok {
		data["login_time"] = loginTime
	}
	response.Success(c, data)
}

// Logout обрабатывает POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.TokenFromRequest(c)
	if h.sessions != nil {
		if claims, err := h.auth.Verify(c.Request.Context(), token); err == nil {
			h.sessions.EndSession(claims.ID)
		}
	}
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	response.Message(c, "вы вышли из дашборда", nil)
}
