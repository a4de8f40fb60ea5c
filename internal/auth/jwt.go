// Package auth выпускает и проверяет JWT (access/refresh) и хранит
// аутентифицированного пользователя в контексте запроса.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"serotonyl.ru/birdwatch/internal/common"
)

// Типы токенов
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims: полезная нагрузка токена.
type Claims struct {
	UserID    int64  `json:"uid"`
	Email     string `json:"email"`
	Staff     bool   `json:"staff,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Pair: пара токенов, которую получает клиент при входе.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager подписывает и проверяет токены HS256.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager создаёт менеджер токенов. Секрет проверяется в config.Validate.
func NewManager(secret string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET пуст")
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Issue выпускает пару access/refresh для пользователя.
func (m *Manager) Issue(p Principal) (Pair, error) {
	access, err := m.sign(p, TokenAccess, m.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.sign(p, TokenRefresh, m.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) sign(p Principal, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		Staff:     p.Staff,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", p.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись, срок действия и тип токена.
// Любая проблема возвращается как common.ErrUnauthorized.
func (m *Manager) Parse(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Только HMAC: защита от подмены алгоритма (none, RS256 с публичным ключом как секретом)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", common.ErrUnauthorized)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("expected %s token: %w", wantType, common.ErrUnauthorized)
	}
	return claims, nil
}

// Refresh обменивает refresh-токен на новую пару.
func (m *Manager) Refresh(refreshToken string) (Pair, error) {
	claims, err := m.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return Pair{}, err
	}
	return m.Issue(claims.Principal())
}

// Principal извлекает пользователя из claims.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Email: c.Email, Staff: c.Staff}
}
