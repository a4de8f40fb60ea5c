// Package users: social.go проверяет токены входа через Google и Apple.
package users

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"google.golang.org/api/idtoken"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/upstream"
)

// ErrProviderDisabled: вход через провайдера не настроен.
var ErrProviderDisabled = errors.New("sign-in provider is not configured")

// Verifier проверяет токен провайдера и возвращает подтверждённого пользователя.
// Недействительный токен даёт ErrUnauthorized, сбой провайдера ErrUpstream.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// DisabledVerifier отклоняет любой токен.
type DisabledVerifier struct {
	Provider string
}

// Verify всегда возвращает ErrUnauthorized.
func (d DisabledVerifier) Verify(context.Context, string) (*Identity, error) {
	return nil, fmt.Errorf("%s: %w: %w", d.Provider, ErrProviderDisabled, common.ErrUnauthorized)
}

func unauthorized(provider string, err error) error {
	return fmt.Errorf("%s token: %w: %v", provider, common.ErrUnauthorized, err)
}

// ============================================================================
// Google
// ============================================================================

// GoogleVerifier проверяет ID-токены Google.
type GoogleVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

// NewGoogleVerifier создаёт верификатор для GOOGLE_CLIENT_ID.
// Без clientID возвращает DisabledVerifier.
func NewGoogleVerifier(ctx context.Context, clientID string) (Verifier, error) {
	if clientID == "" {
		return DisabledVerifier{Provider: ProviderGoogle}, nil
	}
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания валидатора Google: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: v}, nil
}

// Verify проверяет подпись, аудиторию и срок токена.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := g.validator.Validate(ctx, token, g.clientID)
	if err != nil {
		return nil, unauthorized(ProviderGoogle, err)
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, unauthorized(ProviderGoogle, errors.New("email claim is missing"))
	}
	return &Identity{Subject: payload.Subject, Email: email}, nil
}

// ============================================================================
// Apple
// ============================================================================

// Адреса Apple
const (
	AppleIssuer  = "https://appleid.apple.com"
	AppleKeysURL = "https://appleid.apple.com/auth/keys"
)

// appleKeysTTL: сколько держать ключи JWKS.
const appleKeysTTL = 24 * time.Hour

// AppleVerifier проверяет identity-токены Sign in with Apple (RS256 по JWKS).
type AppleVerifier struct {
	clientID string
	keysURL  string
	client   *http.Client
	keys     *cache.Cache // kid → *rsa.PublicKey
	breaker  *upstream.Breaker
}

// NewAppleVerifier создаёт верификатор для APPLE_CLIENT_ID.
// Без clientID возвращает DisabledVerifier.
func NewAppleVerifier(clientID string, client *http.Client) Verifier {
	if clientID == "" {
		return DisabledVerifier{Provider: ProviderApple}
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AppleVerifier{
		clientID: clientID,
		keysURL:  AppleKeysURL,
		client:   client,
		keys:     cache.New(appleKeysTTL, time.Hour),
		breaker:  upstream.New(ProviderApple, upstream.DefaultSettings),
	}
}

// Verify проверяет подпись, издателя, аудиторию и срок токена.
func (a *AppleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	var fetchErr error
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid header is missing")
		}
		key, err := a.key(ctx, kid)
		if err != nil {
			fetchErr = err
		}
		return key, err
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(AppleIssuer),
		jwt.WithAudience(a.clientID),
		jwt.WithExpirationRequired(),
	)
	if fetchErr != nil && errors.Is(fetchErr, common.ErrUpstream) {
		return nil, fetchErr
	}
	if err != nil {
		return nil, unauthorized(ProviderApple, err)
	}

	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil, unauthorized(ProviderApple, errors.New("sub or email claim is missing"))
	}
	return &Identity{Subject: sub, Email: email}, nil
}

// key возвращает ключ по kid. Неизвестный kid обновляет набор ключей:
// Apple ротирует их без предупреждения.
func (a *AppleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := a.keys.Get(kid); ok {
		return k.(*rsa.PublicKey), nil
	}

	keys, err := upstream.Call(a.breaker, func() (map[string]*rsa.PublicKey, error) {
		return a.fetchKeys(ctx)
	})
	if err != nil {
		return nil, err
	}
	for id, k := range keys {
		a.keys.SetDefault(id, k)
	}
	k, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return k, nil
}

type jwks struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (a *AppleVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.keysURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: unexpected status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("jwks key %s: %w", k.Kid, err)
		}
		out[k.Kid] = pub
	}
	return out, nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
