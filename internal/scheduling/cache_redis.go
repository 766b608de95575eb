package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/availability"
)

const redisScanBatch = 100

// RedisCache shares computed slots between server instances.
// Redis failures degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]availability.TimeSlot, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Slot cache read failed")
		}
		return nil, false
	}
	var slots []availability.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable slot cache entry")
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) Set(ctx context.Context, key string, slots []availability.TimeSlot) {
	data, err := json.Marshal(slots)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to encode slots for cache")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Slot cache write failed")
	}
}

func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID int64) {
	var keys []string
	iter := c.client.Scan(ctx, 0, tenantKeyPrefix(tenantID)+"*", redisScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("tenant_id", tenantID).Msg("Slot cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("tenant_id", tenantID).Msg("Slot cache invalidation failed")
	}
}
