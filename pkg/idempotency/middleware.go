package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches idempotency-key resolutions in Redis. It is only a fast path:
// the durable key table stays authoritative, so a miss or a Redis error
// simply falls through to the database.
type Store struct {
	rdb   redis.Cmdable
	scope string
	ttl   time.Duration
}

func NewStore(rdb redis.Cmdable, scope string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, scope: scope, ttl: ttl}
}

func (s *Store) Key(key string) string {
	return fmt.Sprintf("idem:%s:%s", s.scope, key)
}

// Lookup returns the value remembered for key.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Remember binds key to value unless it is already bound, and reports
// whether this call did the binding.
func (s *Store) Remember(ctx context.Context, key, value string) (bool, error) {
	return s.rdb.SetNX(ctx, s.Key(key), value, s.ttl).Result()
}

func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.Key(key)).Err()
}
