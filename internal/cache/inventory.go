package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	DenylistKeyPrefix  = "denylist:%s"
	RateLimitKeyPrefix = "rl:%s:%s"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func DenylistKey(jti string) string {
	return fmt.Sprintf(DenylistKeyPrefix, jti)
}

func RateLimitKey(resource, id string) string {
	return fmt.Sprintf(RateLimitKeyPrefix, resource, id)
}
