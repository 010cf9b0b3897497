// Package cache keeps engagement counters in redis for readers.
// Writers store fresh values while they hold the lock that serializes the
// counter change; cache-aside readers only fill keys that are absent, so a
// reader that loaded before a change never overwrites the writer's value.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/engagement/internal/content"
)

const (
	contentPrefix = "engagement:counters:"
	unreadPrefix  = "engagement:unread:"
)

// fillContentScript 仅在 key 不存在时写入，已有值以写入方为准
var fillContentScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "likes", ARGV[1], "dislikes", ARGV[2], "comments", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// CounterCache 计数缓存
type CounterCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

func NewCounterCache(client *redis.Client, ttl time.Duration) *CounterCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CounterCache{client: client, ttl: ttl}
}

func contentKey(ref content.Ref) string { return contentPrefix + ref.Key() }

func unreadKey(accountID string) string { return unreadPrefix + accountID }

// StoreContent 覆盖写入内容计数
func (c *CounterCache) StoreContent(ctx context.Context, ref content.Ref, counts content.Counts) error {
	key := contentKey(ref)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"likes", counts.Likes,
		"dislikes", counts.Dislikes,
		"comments", counts.Comments,
	)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// fillContent writes counts only when ref has no cached entry. It reports
// whether it wrote.
func (c *CounterCache) fillContent(ctx context.Context, ref content.Ref, counts content.Counts) (bool, error) {
	n, err := fillContentScript.Run(ctx, c.client, []string{contentKey(ref)},
		counts.Likes, counts.Dislikes, counts.Comments, c.ttl.Milliseconds()).Int64()
	return n == 1, err
}

// Content returns the cached counts; ok is false on a miss.
func (c *CounterCache) Content(ctx context.Context, ref content.Ref) (content.Counts, bool, error) {
	vals, err := c.client.HGetAll(ctx, contentKey(ref)).Result()
	if err != nil {
		return content.Counts{}, false, err
	}
	if len(vals) == 0 {
		return content.Counts{}, false, nil
	}
	var counts content.Counts
	for field, dst := range map[string]*int64{
		"likes":    &counts.Likes,
		"dislikes": &counts.Dislikes,
		"comments": &counts.Comments,
	} {
		n, err := strconv.ParseInt(vals[field], 10, 64)
		if err != nil {
			// 损坏的缓存视为未命中
			return content.Counts{}, false, nil
		}
		*dst = n
	}
	return counts, true, nil
}

// FetchContent 先读缓存，未命中时调用 load 并回填（key 已被写入方填上时不覆盖）
func (c *CounterCache) FetchContent(ctx context.Context, ref content.Ref, load func(context.Context) (content.Counts, error)) (content.Counts, error) {
	if counts, ok, err := c.Content(ctx, ref); err == nil && ok {
		c.hits.Add(1)
		return counts, nil
	}
	c.misses.Add(1)
	c.loads.Add(1)

	counts, err := load(ctx)
	if err != nil {
		return content.Counts{}, err
	}
	_, _ = c.fillContent(ctx, ref, counts)
	return counts, nil
}

func (c *CounterCache) InvalidateContent(ctx context.Context, ref content.Ref) error {
	return c.client.Del(ctx, contentKey(ref)).Err()
}

// StoreUnread overwrites the cached unread count.
func (c *CounterCache) StoreUnread(ctx context.Context, accountID string, n int64) error {
	return c.client.Set(ctx, unreadKey(accountID), n, c.ttl).Err()
}

// Unread returns the cached unread count; ok is false on a miss.
func (c *CounterCache) Unread(ctx context.Context, accountID string) (int64, bool, error) {
	n, err := c.client.Get(ctx, unreadKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read unread count: %w", err)
	}
	return n, true, nil
}

func (c *CounterCache) FetchUnread(ctx context.Context, accountID string, load func(context.Context) (int64, error)) (int64, error) {
	if n, ok, err := c.Unread(ctx, accountID); err == nil && ok {
		c.hits.Add(1)
		return n, nil
	}
	c.misses.Add(1)
	c.loads.Add(1)

	n, err := load(ctx)
	if err != nil {
		return 0, err
	}
	_ = c.client.SetNX(ctx, unreadKey(accountID), n, c.ttl).Err()
	return n, nil
}

func (c *CounterCache) InvalidateUnread(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, unreadKey(accountID)).Err()
}

// Stats summarises cache effectiveness since the last reset.
type Stats struct {
	Hits   int64
	Misses int64
	Loads  int64
}

func (c *CounterCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Loads: c.loads.Load()}
}

func (c *CounterCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.loads.Store(0)
}
