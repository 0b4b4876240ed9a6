package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked access token ids until their natural expiry.
type Denylist struct {
	rdb *redis.Client
}

// NewDenylist returns a Denylist. A nil client disables revocation checks.
func NewDenylist(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb}
}

// Enabled reports whether revocations are persisted.
func (d *Denylist) Enabled() bool {
	return d != nil && d.rdb != nil
}

// Revoke denylists jti for ttl. Non-positive ttl means the token already expired.
func (d *Denylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if !d.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, DenylistKey(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !d.Enabled() || jti == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, DenylistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
