package link

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shortlyhq/shortly/internal/errx"
)

const cacheKeyPrefix = "link:"

func cacheKey(shortCode string) string {
	return cacheKeyPrefix + shortCode
}

type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a redis-backed Cache.
func NewRedisCache(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, shortCode string) (Link, bool, error) {
	const op = "link.cache.Get"

	data, err := c.rdb.Get(ctx, cacheKey(shortCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Link{}, false, nil
	}
	if err != nil {
		return Link{}, false, errx.E(op, errx.Unavailable, err)
	}

	l, err := decodeLink(data)
	if err != nil {
		// A corrupt entry behaves like a miss so the read path can
		// fall back to the store.
		return Link{}, false, errx.E(op, errx.Internal, err)
	}
	return l, true, nil
}

func (c *redisCache) Set(ctx context.Context, link Link, ttl time.Duration) error {
	const op = "link.cache.Set"

	data, err := encodeLink(link)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}
	if err := c.rdb.Set(ctx, cacheKey(link.ShortCode), data, ttl).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, shortCodes ...string) (int64, error) {
	const op = "link.cache.Delete"

	if len(shortCodes) == 0 {
		return 0, nil
	}

	keys := make([]string, len(shortCodes))
	for i, code := range shortCodes {
		keys[i] = cacheKey(code)
	}

	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}

func (c *redisCache) ReplaceAll(ctx context.Context, links []Link, ttl time.Duration) error {
	const op = "link.cache.ReplaceAll"

	// Encode before touching redis so a bad entry cannot abort the
	// transaction halfway.
	payloads := make(map[string][]byte, len(links))
	for _, l := range links {
		data, err := encodeLink(l)
		if err != nil {
			return errx.E(op, errx.Internal, err)
		}
		payloads[cacheKey(l.ShortCode)] = data
	}

	stale, err := c.scanKeys(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	// MULTI/EXEC: the delete of the old key set and the writes of the
	// new one become visible to other clients as one unit.
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		for key, data := range payloads {
			pipe.Set(ctx, key, data, ttl)
		}
		return nil
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (c *redisCache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
