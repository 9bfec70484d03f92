package external

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/somatic-tier-classifier/internal/domain"
)

const cacheKeyPrefix = "tier:kb:"

// MemoryCache is an in-process LRU of knowledge-base payloads with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a memory cache sized and aged by config.
func NewMemoryCache(config domain.CacheConfig) *MemoryCache {
	size := config.MaxItems
	if size <= 0 {
		size = 1000
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []byte](size, nil, config.DefaultTTL),
	}
}

// Get returns a copy of the cached payload.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), value...), true
}

// Set stores a copy of value.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// RedisCache shares knowledge-base payloads between classifier instances.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to config.RedisURL and pings it.
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get returns the cached payload. Redis errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false // Cache miss
	}
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores value with the default TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.redis.Set(ctx, key, value, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// TieredCache reads through its tiers in order and back-fills the faster tiers
// on a hit. Writes go to every tier.
type TieredCache struct {
	tiers []domain.PayloadCache
}

// NewTieredCache chains caches fastest first. Nil tiers are skipped.
func NewTieredCache(tiers ...domain.PayloadCache) *TieredCache {
	t := &TieredCache{}
	for _, tier := range tiers {
		if tier != nil {
			t.tiers = append(t.tiers, tier)
		}
	}
	return t
}

func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, tier := range t.tiers {
		value, ok := tier.Get(ctx, key)
		if !ok {
			continue
		}
		for _, faster := range t.tiers[:i] {
			_ = faster.Set(ctx, key, value)
		}
		return value, true
	}
	return nil, false
}

func (t *TieredCache) Set(ctx context.Context, key string, value []byte) error {
	var firstErr error
	for _, tier := range t.tiers {
		if err := tier.Set(ctx, key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// payloadKey identifies one source's payload for one variant.
func payloadKey(source domain.EvidenceSource, variant domain.VariantContext) string {
	identity := fmt.Sprintf("%s|%s|%s", variant.VariantID, variant.GeneSymbol, variant.HGVS)
	return fmt.Sprintf("%s%s:%x", cacheKeyPrefix, source, sha256.Sum256([]byte(identity)))
}
