package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDenylist(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDenylist(client), mr
}

func TestRedisDenylist_RevokeAndExpire(t *testing.T) {
	denylist, mr := newTestDenylist(t)
	ctx := context.Background()

	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("IsRevoked(unknown) = %v, %v", revoked, err)
	}

	if err := denylist.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked, _ := denylist.IsRevoked(ctx, "jti-1"); !revoked {
		t.Error("expected jti-1 to be revoked")
	}
	if got := mr.TTL("jti-1"); got != time.Minute {
		t.Errorf("TTL = %v, want 1m", got)
	}

	mr.FastForward(2 * time.Minute)
	if revoked, _ := denylist.IsRevoked(ctx, "jti-1"); revoked {
		t.Error("expected entry to expire with the token")
	}
}

func TestRedisDenylist_ExpiredTokenNotStored(t *testing.T) {
	denylist, mr := newTestDenylist(t)

	if err := denylist.Revoke(context.Background(), "jti-2", -time.Second); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if mr.Exists("jti-2") {
		t.Error("expected no entry for an already expired token")
	}
}

func TestRedisDenylist_Unavailable(t *testing.T) {
	denylist, mr := newTestDenylist(t)
	mr.Close()

	if _, err := denylist.IsRevoked(context.Background(), "jti-3"); err == nil {
		t.Error("expected error when redis is unavailable")
	}
}
