package users

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

const testAppleClient = "app.birdwatch.ios"

type appleFixture struct {
	key      *rsa.PrivateKey
	verifier *AppleVerifier
	mt       *httpmock.MockTransport
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, AppleKeysURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}))

	v := NewAppleVerifier(testAppleClient, &http.Client{Transport: mt})
	return &appleFixture{key: key, verifier: v.(*AppleVerifier), mt: mt}
}

func (f *appleFixture) token(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   AppleIssuer,
		"aud":   testAppleClient,
		"sub":   "001234.apple.user",
		"email": "Birder@icloud.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestAppleVerifyValidTokenAndCachesKeys(t *testing.T) {
	f := newAppleFixture(t)
	ctx := context.Background()

	id, err := f.verifier.Verify(ctx, f.token(t, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "001234.apple.user", id.Subject)
	assert.Equal(t, "Birder@icloud.com", id.Email)

	_, err = f.verifier.Verify(ctx, f.token(t, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, 1, f.mt.GetTotalCallCount(), "ключи должны браться из кеша")
}

func TestAppleVerifyRejectsBadTokens(t *testing.T) {
	f := newAppleFixture(t)
	ctx := context.Background()

	wrongAud := validClaims()
	wrongAud["aud"] = "someone.else"
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noEmail := validClaims()
	delete(noEmail, "email")

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hs.Header["kid"] = "k1"
	hsToken, err := hs.SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong audience": f.token(t, "k1", wrongAud),
		"expired":        f.token(t, "k1", expired),
		"no email":       f.token(t, "k1", noEmail),
		"unknown kid":    f.token(t, "k2", validClaims()),
		"hmac":           hsToken,
		"garbage":        "not.a.jwt",
	} {
		_, err := f.verifier.Verify(ctx, tok)
		assert.ErrorIs(t, err, common.ErrUnauthorized, name)
	}
}

func TestAppleVerifyJWKSFailureIsUpstream(t *testing.T) {
	f := newAppleFixture(t)
	f.mt.RegisterResponder(http.MethodGet, AppleKeysURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))

	_, err := f.verifier.Verify(context.Background(), f.token(t, "k1", validClaims()))
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
}

func TestDisabledVerifiers(t *testing.T) {
	ctx := context.Background()

	_, err := NewAppleVerifier("", nil).Verify(ctx, "token")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.ErrorIs(t, err, ErrProviderDisabled)

	g, err := NewGoogleVerifier(ctx, "")
	require.NoError(t, err)
	_, err = g.Verify(ctx, "token")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
