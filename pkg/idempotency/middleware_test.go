package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "invoice", time.Hour), mr
}

func TestRememberFirstWriterWins(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	ok, err := s.Remember(ctx, "abc", "inv-1")
	if err != nil || !ok {
		t.Fatalf("first remember should bind, got %v, %v", ok, err)
	}
	ok, err = s.Remember(ctx, "abc", "inv-2")
	if err != nil || ok {
		t.Fatalf("second remember must not overwrite, got %v, %v", ok, err)
	}

	v, found, err := s.Lookup(ctx, "abc")
	if err != nil || !found || v != "inv-1" {
		t.Fatalf("expected inv-1, got %q %v %v", v, found, err)
	}
}

func TestLookupMissAndForget(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if _, found, err := s.Lookup(ctx, "nope"); err != nil || found {
		t.Fatalf("expected clean miss, got %v %v", found, err)
	}
	_, _ = s.Remember(ctx, "k", "inv")
	if err := s.Forget(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Lookup(ctx, "k"); found {
		t.Error("key should be gone")
	}
}

func TestEntriesExpire(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, _ = s.Remember(ctx, "k", "inv")
	if ttl := mr.TTL(s.Key("k")); ttl != time.Hour {
		t.Errorf("expected 1h ttl, got %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, found, _ := s.Lookup(ctx, "k"); found {
		t.Error("entry should have expired")
	}
}
