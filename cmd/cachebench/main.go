package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/cache"
	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/pkg/database"
)

const (
	postCount   = 200
	likesPer    = 50
	requests    = 20000
	invalidateN = 500 // 每 invalidateN 次读取模拟一次重算失效
)

func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		mr := must(miniredis.Run())
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Println("REDIS_ADDR not set, using in-process redis")
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
	}

	s := store.New(db, repository.NewRegistry())
	refs := seed(ctx, s, db)
	fmt.Printf("Test data ready: %d posts, up to %d likes each\n", len(refs), likesPer)

	counters := cache.NewCounterCache(client, 10*time.Minute)
	load := func(ref content.Ref) func(context.Context) (content.Counts, error) {
		return func(ctx context.Context) (content.Counts, error) { return s.ContentCounters(ctx, ref) }
	}

	rng := rand.New(rand.NewSource(42))
	order := make([]content.Ref, requests)
	for i := range order {
		// 热点分布：前 10% 的帖子承接大部分读
		if rng.Intn(10) < 8 {
			order[i] = refs[rng.Intn(len(refs)/10)]
		} else {
			order[i] = refs[rng.Intn(len(refs))]
		}
	}

	noCache := make([]time.Duration, 0, requests)
	for _, ref := range order {
		st := time.Now()
		_ = must(s.ContentCounters(ctx, ref))
		noCache = append(noCache, time.Since(st))
	}

	client.FlushAll(ctx)
	counters.ResetStats()
	cached := make([]time.Duration, 0, requests)
	for i, ref := range order {
		if i > 0 && i%invalidateN == 0 {
			_ = counters.InvalidateContent(ctx, order[i-1])
		}
		st := time.Now()
		_ = must(counters.FetchContent(ctx, ref, load(ref)))
		cached = append(cached, time.Since(st))
	}
	stats := counters.Stats()
	keys := must(client.DBSize(ctx).Result())

	fmt.Printf("\nCounter read latency (%d req across %d posts)\n", requests, len(refs))
	fmt.Printf("%-14s avg=%v p95=%v p99=%v\n", "No cache", avg(noCache), pct(noCache, 0.95), pct(noCache, 0.99))
	fmt.Printf("%-14s avg=%v p95=%v p99=%v hits=%d misses=%d loads=%d keys=%d\n", "Counter cache",
		avg(cached), pct(cached, 0.95), pct(cached, 0.99), stats.Hits, stats.Misses, stats.Loads, keys)
}

// seed 直接批量写入帖子，计数列按已收敛的状态预置
func seed(ctx context.Context, s *store.Store, db *gorm.DB) []content.Ref {
	runID := uuid.NewString()[:8]
	author := must(s.CreateAccount(ctx, &model.Account{Username: "cache-" + runID, Phone: "c" + runID}))
	posts := make([]model.Post, postCount)
	refs := make([]content.Ref, postCount)
	for i := range posts {
		posts[i] = model.Post{
			ID:           uuid.NewString(),
			AuthorID:     author.ID,
			Title:        fmt.Sprintf("post_%d", i),
			LikeCount:    int64(likesPer - i%7),
			DislikeCount: int64(i % 7),
			CommentCount: int64(i % 13),
			Active:       true,
		}
		refs[i] = posts[i].Ref()
	}
	mustDo(db.WithContext(ctx).CreateInBatches(&posts, 100).Error)
	return refs
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

func avg(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func pct(ds []time.Duration, p float64) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), ds...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}
