package services

import (
  "context"
  "encoding/json"
  "errors"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/types"
)

// ResolutionCache is a lookaside cache over resolved exercise names so
// repeat ingestions skip the agent for names seen before. Implementations
// are fail-open: callers treat errors as misses.
type ResolutionCache interface {
  Get(ctx context.Context, normalizedName string) (*types.ExerciseResolution, error)
  Set(ctx context.Context, normalizedName string, res types.ExerciseResolution) error
}

type redisResolutionCache struct {
  client *redis.Client
  log    *logger.Logger
  ttl    time.Duration
}

func NewRedisResolutionCache(client *redis.Client, log *logger.Logger, ttl time.Duration) ResolutionCache {
  if ttl <= 0 {
    ttl = 7 * 24 * time.Hour
  }
  return &redisResolutionCache{
    client: client,
    log:    log.With("service", "ResolutionCache"),
    ttl:    ttl,
  }
}

func cacheKey(normalizedName string) string {
  return "exres:" + normalizedName
}

func (c *redisResolutionCache) Get(ctx context.Context, normalizedName string) (*types.ExerciseResolution, error) {
  raw, err := c.client.Get(ctx, cacheKey(normalizedName)).Result()
  if errors.Is(err, redis.Nil) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }

  var res types.ExerciseResolution
  if err := json.Unmarshal([]byte(raw), &res); err != nil {
    // A corrupt entry is a miss; drop it so it gets rewritten.
    _ = c.client.Del(ctx, cacheKey(normalizedName)).Err()
    return nil, nil
  }
  return &res, nil
}

func (c *redisResolutionCache) Set(ctx context.Context, normalizedName string, res types.ExerciseResolution) error {
  raw, err := json.Marshal(res)
  if err != nil {
    return err
  }
  return c.client.Set(ctx, cacheKey(normalizedName), raw, c.ttl).Err()
}
