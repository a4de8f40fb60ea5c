package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, 30*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t)
	p := Principal{UserID: 42, Email: "a@b.c", Staff: true}

	pair, err := m.Issue(p)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	claims, err := m.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsWrongType(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(Principal{UserID: 1})
	require.NoError(t, err)

	_, err = m.Parse(pair.Refresh, TokenAccess)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = m.Parse(pair.Access, TokenRefresh)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := m.Issue(Principal{UserID: 1})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

func TestParseRejectsForeignSecretAndAlgNone(t *testing.T) {
	m := newTestManager(t)

	other, err := NewManager("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := other.Issue(Principal{UserID: 1})
	require.NoError(t, err)
	_, err = m.Parse(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, TokenType: TokenAccess})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned, TokenAccess)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(Principal{UserID: 7, Email: "x@y.z"})
	require.NoError(t, err)

	next, err := m.Refresh(pair.Refresh)
	require.NoError(t, err)
	claims, err := m.Parse(next.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	_, err = m.Refresh(pair.Access)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Zero(t, UserID(ctx))

	ctx = WithPrincipal(ctx, Principal{UserID: 5})
	assert.Equal(t, int64(5), UserID(ctx))
}
