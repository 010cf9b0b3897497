package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/reaction"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	N := envInt("N", 2000)
	CONC := envInt("CONC", 8)
	WORKERS := envInt("WORKERS", 4)

	registry := repository.NewRegistry()
	dispatcher := reaction.NewDispatcher(db, registry, reaction.WithQueueSize(N*2))
	stop := dispatcher.Start(ctx, WORKERS)
	s := store.New(db, registry, store.WithPublisher(dispatcher))

	// a0 发帖，其余账号并发点赞同一帖子
	runID := uuid.NewString()[:8]
	author := must(s.CreateAccount(ctx, &model.Account{Username: "author-" + runID, Phone: "a" + runID}))
	post := must(s.CreatePost(ctx, &model.Post{AuthorID: author.ID, Title: "bench " + runID}))

	users := make([]model.Account, N)
	for i := range users {
		id := uuid.NewString()
		users[i] = model.Account{ID: id, Username: "u" + id[:12], Phone: fmt.Sprintf("%s%06d", runID[:6], i)}
	}
	if err := db.CreateInBatches(&users, 1000).Error; err != nil {
		panic(err)
	}

	workers := CONC
	if workers > N {
		workers = N
	}
	feed := make(chan int, N)
	for i := 0; i < N; i++ {
		feed <- i
	}
	close(feed)

	var failed atomic.Int64
	latCh := make(chan time.Duration, N)
	done := make(chan struct{}, workers)
	t0 := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			for i := range feed {
				typ := model.LikeTypeLike
				if i%5 == 0 {
					typ = model.LikeTypeDislike
				}
				st := time.Now()
				if _, err := s.CreateLike(ctx, users[i].ID, post.Ref(), typ); err != nil {
					failed.Add(1)
				}
				latCh <- time.Since(st)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(latCh)
	writeDur := time.Since(t0)
	lats := make([]time.Duration, 0, N)
	for d := range latCh {
		lats = append(lats, d)
	}

	// 等待计数收敛
	drainStart := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	err := dispatcher.Wait(waitCtx)
	cancel()
	drainDur := time.Since(drainStart)
	if err != nil {
		fmt.Printf("dispatcher did not drain: %v\n", err)
	}
	_ = stop(context.Background())

	got := must(s.GetPost(ctx, post.ID))
	likes := must(s.CountLikes(ctx, post.Ref(), model.LikeTypeLike))
	dislikes := must(s.CountLikes(ctx, post.Ref(), model.LikeTypeDislike))

	fmt.Printf("N=%d, CONC=%d, WORKERS=%d, failed=%d\n", N, CONC, WORKERS, failed.Load())
	fmt.Printf("Like write latency total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		writeDur, writeDur/time.Duration(N), pct(lats, 0.50), pct(lats, 0.95), pct(lats, 0.99))
	fmt.Printf("Counter convergence drain: %v\n", drainDur)
	fmt.Printf("Post counters: like_count=%d (rows=%d) dislike_count=%d (rows=%d) consistent=%v\n",
		got.LikeCount, likes, got.DislikeCount, dislikes, got.LikeCount == likes && got.DislikeCount == dislikes)
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
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
