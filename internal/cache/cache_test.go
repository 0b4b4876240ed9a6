package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewClient_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(context.Background()).Err())
	assert.Equal(t, maintnotifications.ModeDisabled, rdb.Options().MaintNotificationsConfig.Mode)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestInitRedis_Unreachable(t *testing.T) {
	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:42", UserKey(42))
	assert.Equal(t, "denylist:abc", DenylistKey("abc"))
	assert.Equal(t, "rl:login:ip:1.2.3.4", RateLimitKey("login", "ip:1.2.3.4"))
}

func TestJSONRoundTrip(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	var got profile
	found, err := GetJSON(ctx, rdb, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, rdb, "p", profile{ID: 1, Name: "ab"}, time.Minute))
	found, err = GetJSON(ctx, rdb, "p", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ab", got.Name)

	mr.FastForward(2 * time.Minute)
	found, _ = GetJSON(ctx, rdb, "p", &got)
	assert.False(t, found)
}

func TestAside_FetchOnceThenServeFromCache(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 7, Name: "cached"}
			return nil
		}
	}

	var first profile
	require.NoError(t, Aside(ctx, rdb, UserKey(7), &first, UserTTL, fetch(&first)))
	var second profile
	require.NoError(t, Aside(ctx, rdb, UserKey(7), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	Invalidate(ctx, rdb, UserKey(7))
	var third profile
	require.NoError(t, Aside(ctx, rdb, UserKey(7), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_NilClientAndFetchError(t *testing.T) {
	ctx := context.Background()
	var p profile
	require.NoError(t, Aside(ctx, nil, "k", &p, time.Minute, func() error {
		p.Name = "direct"
		return nil
	}))
	assert.Equal(t, "direct", p.Name)

	boom := errors.New("db down")
	assert.ErrorIs(t, Aside(ctx, nil, "k", &p, time.Minute, func() error { return boom }), boom)
	Invalidate(ctx, nil, "k")
}

func TestAside_RedisDownFallsBackToFetch(t *testing.T) {
	mr, rdb := setupRedis(t)
	mr.Close()

	var p profile
	err := Aside(context.Background(), rdb, "k", &p, time.Minute, func() error {
		p.ID = 3
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), p.ID)
}

func TestDenylist(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	d := NewDenylist(rdb)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(61 * time.Second)
	revoked, _ = d.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-2", 0))
	assert.False(t, mr.Exists(DenylistKey("jti-2")))
}

func TestDenylist_Disabled(t *testing.T) {
	ctx := context.Background()
	var nilList *Denylist
	assert.False(t, nilList.Enabled())

	d := NewDenylist(nil)
	assert.False(t, d.Enabled())
	assert.NoError(t, d.Revoke(ctx, "jti", time.Minute))
	revoked, err := d.IsRevoked(ctx, "jti")
	assert.NoError(t, err)
	assert.False(t, revoked)
}
