package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss - ключ отсутствует в кэше
	ErrCacheMiss = errors.New("cache miss")
	// ErrNegativeCached - в кэше записано "ссылки не существует"
	ErrNegativeCached = errors.New("negative cache entry")
)

// notFoundSentinel is stored as the value of a negative entry. It is
// reserved: a link can never legitimately resolve to this string because
// positive values are always absolute URLs.
const notFoundSentinel = "NOT_FOUND"

// opTimeout bounds every Redis round trip so a cache outage degrades
// resolution latency instead of hanging it.
const opTimeout = 2 * time.Second

// CacheRepository хранит проекцию short_id -> URL с независимым TTL на
// запись. Кэш - только ускоритель: источником истины остаётся Postgres.
type CacheRepository interface {
	GetURL(ctx context.Context, shortID string) (string, error)
	SetURL(ctx context.Context, shortID string, url string, ttl time.Duration) error
	SetNotFound(ctx context.Context, shortID string, ttl time.Duration) error
	Delete(ctx context.Context, shortID string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) GetURL(ctx context.Context, shortID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	value, err := r.redis.Client.Get(ctx, r.key(shortID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("cache get failed: %w", err)
	}

	if value == notFoundSentinel {
		return "", ErrNegativeCached
	}

	return value, nil
}

func (r *cacheRepository) SetURL(ctx context.Context, shortID string, url string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.redis.Client.Set(ctx, r.key(shortID), url, ttl).Err()
}

func (r *cacheRepository) SetNotFound(ctx context.Context, shortID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.redis.Client.Set(ctx, r.key(shortID), notFoundSentinel, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, shortID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.redis.Client.Del(ctx, r.key(shortID)).Err()
}

func (r *cacheRepository) key(shortID string) string {
	return "link:" + shortID
}
