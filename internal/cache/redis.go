// Package cache holds the Redis-backed coordination pieces of the service:
// the discovery run lock, the match-result cache and the refresh events.
//
// Cached matches are keyed by an inventory generation counter. Bumping the
// counter after a discovery run orphans every older entry at once; they age
// out through their TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"farefinder/discovery-service/internal/model"
)

const (
	keyPrefix     = "farefinder:"
	generationKey = keyPrefix + "inventory:generation"
)

// Compare-and-delete so a lock is only released by its holder.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements the match cache, run lock and event publisher.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis returns a cache whose match entries live for ttl.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// TryLock takes the named lock for at most ttl. ok is false when another
// holder has it. The returned release func is a no-op once the lock expired
// and was taken by someone else.
func (c *Redis) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := lockKey(name)
	token := uuid.NewString()

	ok, err = c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("unlock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}

// GetMatches returns the cached results for key under the current
// generation, and that generation. A miss still reports the generation so
// the caller can store its own results against the inventory it read.
func (c *Redis) GetMatches(ctx context.Context, key string) ([]model.MatchResult, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.rdb.Get(ctx, matchKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("get matches: %w", err)
	}

	var results []model.MatchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, 0, false, fmt.Errorf("decode cached matches: %w", err)
	}
	return results, gen, true, nil
}

// SetMatches stores results for key under gen, the generation returned by
// the GetMatches miss that preceded the store reads. Results computed before
// an Invalidate land in the old generation and are never served.
func (c *Redis) SetMatches(ctx context.Context, gen int64, key string, results []model.MatchResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}
	if err := c.rdb.Set(ctx, matchKey(gen, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set matches: %w", err)
	}
	return nil
}

// Invalidate moves to a new inventory generation.
func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump generation: %w", err)
	}
	return nil
}

// Publish sends payload as JSON on channel.
func (c *Redis) Publish(ctx context.Context, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", channel, err)
	}
	if err := c.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (c *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

func lockKey(name string) string {
	return keyPrefix + "lock:" + name
}

func matchKey(gen int64, key string) string {
	return keyPrefix + "matches:" + strconv.FormatInt(gen, 10) + ":" + key
}
