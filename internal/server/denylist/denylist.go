// Package denylist keeps revoked access tokens in Redis until they would
// have expired on their own.
package denylist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces denylist entries in the shared Redis keyspace.
const KeyPrefix = "access_token_blacklist:"

// ErrNonPositiveTTL is returned when asked to store an entry that would
// never exist; such a token has already expired.
var ErrNonPositiveTTL = errors.New("denylist: ttl must be positive")

// RedisDenylist stores one key per revoked access token.
type RedisDenylist struct {
	rdb redis.UniversalClient
}

func NewRedisDenylist(rdb redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{rdb: rdb}
}

// Blacklist marks token as revoked for ttl. The caller computes ttl as the
// token's remaining lifetime; ttl <= 0 is rejected without touching Redis.
func (d *RedisDenylist) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	if err := d.rdb.Set(ctx, key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether token has a live denylist entry.
func (d *RedisDenylist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := d.rdb.Exists(ctx, key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func key(token string) string {
	return KeyPrefix + token
}
