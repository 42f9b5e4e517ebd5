package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/example/furniture-market/internal/readmodel"
	"github.com/redis/go-redis/v9"
)

const (
	baseTTL   = 15 * time.Minute
	maxJitter = 5
	// fenceTTL outlives any cached view, so a fence never resets while a
	// view written under it could still be served.
	fenceTTL = baseTTL + maxJitter*time.Minute
)

// setIfFence stores KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfFence = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, baseTTL: baseTTL}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*readmodel.CartReadModel, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart readmodel.CartReadModel
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Fence returns the current invalidation counter of userID, 0 if none.
func (r *RedisCache) Fence(ctx context.Context, userID string) (int64, error) {
	fence, err := r.client.Get(ctx, fenceKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get fence failed: %w", err)
	}
	return fence, nil
}

// Set stores cart with a jittered TTL so entries written together do not
// expire together. It returns ErrFenced when userID was invalidated after
// fence was read.
func (r *RedisCache) Set(ctx context.Context, userID string, fence int64, cart *readmodel.CartReadModel) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(maxJitter))*time.Minute
	stored, err := setIfFence.Run(ctx, r.client,
		[]string{cacheKey(userID), fenceKey(userID)},
		strconv.FormatInt(fence, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if stored == 0 {
		return ErrFenced
	}
	return nil
}

// Delete drops the cached view and advances the fence in one transaction.
func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, fenceKey(userID))
		pipe.Expire(ctx, fenceKey(userID), fenceTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func fenceKey(userID string) string {
	return fmt.Sprintf("cart-fence:%s", userID)
}
