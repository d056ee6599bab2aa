package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
)

// Authenticator единая граница аутентификации дашборда.
type Authenticator interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Verify(ctx context.Context, token string) (*SessionClaims, error)
	Logout(ctx context.Context, token string) error
}

// KeyValueStore описывает зависимость от key/value хранилища.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult токен сессии и время входа.
type LoginResult struct {
	Token     string
	Claims    *SessionClaims
	LoginTime time.Time
}

// AuthService проверяет пароль оператора и ведёт JWT сессии.
type AuthService struct {
	tokens       *TokenManager
	cache        *CacheService
	kv           KeyValueStore
	username     string
	passwordHash []byte
}

// NewAuthService создаёт сервис аутентификации.
// passwordHash bcrypt хэш пароля оператора.
func NewAuthService(tokens *TokenManager, cache *CacheService, kv KeyValueStore, username, passwordHash string) *AuthService {
	return &AuthService{
		tokens:       tokens,
		cache:        cache,
		kv:           kv,
		username:     username,
		passwordHash: []byte(passwordHash),
	}
}

// HashPassword возвращает bcrypt хэш пароля.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth service: не удалось захэшировать пароль: %w", err)
	}
	return string(hash), nil
}

// Login проверяет пароль, выпускает токен и запоминает время входа.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(in.Password) == "" {
		return nil, apperror.Validation("введите пароль", map[string]string{"password": "введите пароль"})
	}

	username := strings.TrimSpace(in.Username)
	if username != "" && subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(in.Password)); err != nil {
		logger.Log.WithField("component", "auth").Warn("неудачная попытка входа в дашборд")
		return nil, apperror.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(s.username)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	loginTime := claims.IssuedAt
	if err := s.kv.Set(ctx, models.KeyLoginTime, loginTime.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("auth service: не удалось сохранить время входа: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"component": "auth",
		"jti":       claims.ID,
		"expires":   claims.ExpiresAt,
	}).Info("вход в дашборд")

	return &LoginResult{Token: token, Claims: claims, LoginTime: loginTime}, nil
}

// Verify проверяет токен: подпись, срок действия и отзыв.
func (s *AuthService) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	if token == "" {
		return nil, apperror.ErrUnauthorized
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "недействительный токен")
	}

	if _, revoked := s.cache.Get(RevokedTokenCacheKey(claims.ID)); revoked {
		return nil, apperror.ErrSessionExpired
	}

	return claims, nil
}

// Logout отзывает токен до конца его срока действия.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		// Выход с недействительным токеном ничего не меняет.
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(RevokedTokenCacheKey(claims.ID), true, ttl)

	logger.Log.WithFields(logrus.Fields{
		"component": "auth",
		"jti":       claims.ID,
	}).Info("выход из дашборда")
	return nil
}

// LoginTime возвращает время последнего входа, если оно сохранено.
func (s *AuthService) LoginTime(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, models.KeyLoginTime)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
