package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mirror/internal/models"
)

const (
	keyPrefix  = "mirror:feed:"
	genPrefix  = "mirror:feed-gen:"
	defaultTTL = 30 * time.Second
)

// FeedCache holds ranked feed lists per media type, keyed by a generation counter that
// Invalidate advances. A list computed under an older generation is written where no reader
// looks, so a ranking loaded before an invalidation is never served after it.
// Failures are logged and reported as misses so callers always fall back to the database.
type FeedCache interface {
	// Generation reports the current generation of mediaType; ok is false when the cache
	// cannot be used for this request.
	Generation(ctx context.Context, mediaType string) (gen int64, ok bool)
	GetFeed(ctx context.Context, mediaType string, gen int64) ([]models.FeedPost, bool)
	SetFeed(ctx context.Context, mediaType string, gen int64, posts []models.FeedPost)
	Invalidate(ctx context.Context, mediaTypes ...string)
	Close() error
}

// NewFromEnv connects to REDIS_ADDR when set and otherwise returns a cache that never hits.
func NewFromEnv() FeedCache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Info().Msg("REDIS_ADDR not set, feed cache disabled")
		return NoopCache{}
	}

	db, err := strconv.Atoi(os.Getenv("REDIS_DB"))
	if err != nil {
		db = 0
	}
	ttl := defaultTTL
	if secs, err := strconv.Atoi(os.Getenv("FEED_CACHE_TTL_SECONDS")); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("Failed to connect to Redis, feed cache disabled")
		_ = rdb.Close()
		return NoopCache{}
	}

	log.Info().Str("addr", addr).Dur("ttl", ttl).Msg("Redis feed cache enabled")
	return NewRedisCache(rdb, ttl)
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) FeedCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisCache{rdb: rdb, ttl: ttl}
}

func feedKey(mediaType string, gen int64) string {
	return keyPrefix + mediaType + ":" + strconv.FormatInt(gen, 10)
}

func genKey(mediaType string) string {
	return genPrefix + mediaType
}

func (c *redisCache) Generation(ctx context.Context, mediaType string) (int64, bool) {
	gen, err := c.rdb.Get(ctx, genKey(mediaType)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		log.Error().Err(err).Str("type", mediaType).Msg("Feed cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (c *redisCache) GetFeed(ctx context.Context, mediaType string, gen int64) ([]models.FeedPost, bool) {
	raw, err := c.rdb.Get(ctx, feedKey(mediaType, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Str("type", mediaType).Msg("Feed cache read failed")
		}
		return nil, false
	}

	var posts []models.FeedPost
	if err := json.Unmarshal(raw, &posts); err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Feed cache entry is corrupt")
		return nil, false
	}
	return posts, true
}

func (c *redisCache) SetFeed(ctx context.Context, mediaType string, gen int64, posts []models.FeedPost) {
	raw, err := json.Marshal(posts)
	if err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Failed to encode feed for cache")
		return
	}
	if err := c.rdb.Set(ctx, feedKey(mediaType, gen), raw, c.ttl).Err(); err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Feed cache write failed")
	}
}

// Invalidate advances the generation of each media type; older entries expire on their own.
func (c *redisCache) Invalidate(ctx context.Context, mediaTypes ...string) {
	if len(mediaTypes) == 0 {
		return
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range mediaTypes {
			pipe.Incr(ctx, genKey(t))
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Strs("types", mediaTypes).Msg("Feed cache invalidation failed")
	}
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}

type NoopCache struct{}

func (NoopCache) Generation(context.Context, string) (int64, bool)                 { return 0, false }
func (NoopCache) GetFeed(context.Context, string, int64) ([]models.FeedPost, bool) { return nil, false }
func (NoopCache) SetFeed(context.Context, string, int64, []models.FeedPost)        {}
func (NoopCache) Invalidate(context.Context, ...string)                            {}
func (NoopCache) Close() error                                                     { return nil }
