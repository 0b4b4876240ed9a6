package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-with-enough-length"
	testRefreshSecret = "test-refresh-secret-with-enough-length"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		AccessSecret:  testAccessSecret,
		AccessTTL:     15 * time.Minute,
		RefreshSecret: testRefreshSecret,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_Validation(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{AccessSecret: "a", RefreshSecret: "a", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = NewTokenManager(TokenConfig{AccessSecret: "a", RefreshSecret: "b"})
	assert.Error(t, err)

	_, err = NewTokenManager(TokenConfig{RefreshSecret: "b", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueAccess(Identity{UserID: 42, Email: "a@x.com", Username: "ab", FullName: "A B"})
	require.NoError(t, err)

	claims, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "ab", claims.Username)
	assert.Equal(t, "A B", claims.FullName)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	id, err := UserID(claims.RegisteredClaims)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	assert.InDelta(t, (15 * time.Minute).Seconds(), m.RemainingTTL(claims.RegisteredClaims).Seconds(), 2)
}

func TestRefreshToken_CarriesOnlyUserID(t *testing.T) {
	m := newTestManager(t)
	token, err := m.IssueRefresh(7)
	require.NoError(t, err)

	claims, err := m.ParseRefresh(token)
	require.NoError(t, err)
	id, err := UserID(claims.RegisteredClaims)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	raw := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, raw)
	require.NoError(t, err)
	for _, k := range []string{"email", "username", "fullname"} {
		assert.NotContains(t, raw, k)
	}
}

func TestRefreshToken_DistinctPerIssue(t *testing.T) {
	m := newTestManager(t)
	first, err := m.IssueRefresh(1)
	require.NoError(t, err)
	second, err := m.IssueRefresh(1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestParse_RejectsCrossUse(t *testing.T) {
	m := newTestManager(t)

	access, err := m.IssueAccess(Identity{UserID: 1})
	require.NoError(t, err)
	refresh, err := m.IssueRefresh(1)
	require.NoError(t, err)

	_, err = m.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = m.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseAccess_RejectsWrongType(t *testing.T) {
	m := newTestManager(t)
	claims := RefreshClaims{Type: TokenTypeRefresh, RegisteredClaims: m.registered(1, time.Minute)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParse_Expired(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := m.IssueAccess(Identity{UserID: 1})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_RejectsTampering(t *testing.T) {
	m := newTestManager(t)
	base := m.registered(1, time.Minute)

	tests := []struct {
		name  string
		token func() string
	}{
		{"wrong secret", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: base}).SignedString([]byte("other-secret"))
			return s
		}},
		{"wrong algorithm", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: base}).SignedString([]byte(testAccessSecret))
			return s
		}},
		{"unsigned", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: base}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return s
		}},
		{"wrong issuer", func() string {
			rc := base
			rc.Issuer = "someone-else"
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: rc}).SignedString([]byte(testAccessSecret))
			return s
		}},
		{"wrong audience", func() string {
			rc := base
			rc.Audience = jwt.ClaimStrings{"elsewhere"}
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: rc}).SignedString([]byte(testAccessSecret))
			return s
		}},
		{"no expiry", func() string {
			rc := base
			rc.ExpiresAt = nil
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Type: TokenTypeAccess, RegisteredClaims: rc}).SignedString([]byte(testAccessSecret))
			return s
		}},
		{"garbage", func() string { return "not.a.jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAccess(tt.token())
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestUserID_BadSubject(t *testing.T) {
	_, err := UserID(jwt.RegisteredClaims{Subject: "abc"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = UserID(jwt.RegisteredClaims{Subject: "0"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRemainingTTL(t *testing.T) {
	m := newTestManager(t)
	assert.Zero(t, m.RemainingTTL(jwt.RegisteredClaims{}))
	past := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
	assert.Zero(t, m.RemainingTTL(past))
}
