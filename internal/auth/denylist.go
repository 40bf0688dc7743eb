package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokedMarker is the value stored for a revoked token identifier.
const revokedMarker = "true"

// RedisDenylist stores revoked token identifiers in Redis. Entries expire
// together with the token they revoke.
type RedisDenylist struct {
	client *redis.Client
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Revoke marks jti as revoked for ttl. A non-positive ttl means the token has
// already expired and nothing is written.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, jti, revokedMarker, ttl).Err()
}

// IsRevoked reports whether jti is on the denylist.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	value, err := d.client.Get(ctx, jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == revokedMarker, nil
}
