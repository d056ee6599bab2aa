package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleOperator единственная роль: оператор дашборда.
const RoleOperator = "operator"

// SessionClaims данные сессии дашборда из токена.
type SessionClaims struct {
	ID        string
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL возвращает срок жизни сессии.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue выпускает токен сессии со случайным jti.
func (m *TokenManager) Issue(subject string) (string, *SessionClaims, error) {
	now := m.now()
	sc := &SessionClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Role:      RoleOperator,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := jwt.MapClaims{
		"jti":  sc.ID,
		"sub":  sc.Subject,
		"role": sc.Role,
		"iat":  now.Unix(),
		"exp":  sc.ExpiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token manager: не удалось подписать токен: %w", err)
	}
	return signed, sc, nil
}

// Parse проверяет подпись и срок действия токена.
func (m *TokenManager) Parse(token string) (*SessionClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if jti == "" || sub == "" {
		return nil, errors.New("токен без jti или sub")
	}

	sc := &SessionClaims{ID: jti, Subject: sub, Role: role}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		sc.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sc.ExpiresAt = exp.Time
	}
	return sc, nil
}
