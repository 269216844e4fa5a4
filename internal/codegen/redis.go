package codegen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RedisClient is the subset of the go-redis API used by RedisSequence.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisSequence hands out counters with INCR. The key is seeded once from
// the relational store with SETNX so it continues after existing codes.
type RedisSequence struct {
	Client RedisClient
	// KeyPrefix defaults to "labyard:seq".
	KeyPrefix string
}

// Key returns the redis key for prefix and year.
func (r *RedisSequence) Key(prefix string, year int) string {
	kp := r.KeyPrefix
	if kp == "" {
		kp = "labyard:seq"
	}
	return fmt.Sprintf("%s:%s:%d", kp, prefix, year)
}

// Next implements Sequence.
func (r *RedisSequence) Next(ctx context.Context, tx *gorm.DB, prefix string, year int) (int64, error) {
	key := r.Key(prefix, year)

	last, err := LastIssued(tx.WithContext(ctx), prefix, year)
	if err != nil {
		return 0, err
	}
	if err := r.Client.SetNX(ctx, key, last, 0).Err(); err != nil {
		return 0, fmt.Errorf("codegen: seed %s: %w", key, err)
	}

	n, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("codegen: incr %s: %w", key, err)
	}
	return n, nil
}
