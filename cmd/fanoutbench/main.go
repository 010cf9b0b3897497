package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/notification"
	"github.com/d60-Lab/engagement/internal/reaction"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/pkg/database"
)

// 通知扇出压测：N 个账号关注同一账号，再全部标记已读，检查未读计数收敛
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	N := 1000
	if s := os.Getenv("N"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			N = v
		}
	}
	CONC := 8
	if s := os.Getenv("CONC"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			CONC = v
		}
	}

	registry := repository.NewRegistry()
	dispatcher := reaction.NewDispatcher(db, registry, reaction.WithQueueSize(N*4))
	s := store.New(db, registry, store.WithPublisher(dispatcher))
	notification.NewFanout(s).Register(dispatcher)
	stop := dispatcher.Start(ctx, CONC)

	runID := uuid.NewString()[:8]
	celeb, err := s.CreateAccount(ctx, &model.Account{Username: "celeb-" + runID, Phone: "f" + runID})
	if err != nil {
		panic(err)
	}
	fans := make([]model.Account, N)
	for i := range fans {
		id := uuid.NewString()
		fans[i] = model.Account{ID: id, Username: "fan" + id[:12], Phone: fmt.Sprintf("%s%06d", runID[:6], i)}
	}
	if err := db.CreateInBatches(&fans, 1000).Error; err != nil {
		panic(err)
	}

	var (
		mu   sync.Mutex
		lats []time.Duration
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, CONC)
	t0 := time.Now()
	for i := range fans {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			st := time.Now()
			_, _ = s.Follow(ctx, id, celeb.ID)
			d := time.Since(st)
			mu.Lock()
			lats = append(lats, d)
			mu.Unlock()
		}(fans[i].ID)
	}
	wg.Wait()
	followDur := time.Since(t0)

	t1 := time.Now()
	if err := dispatcher.Wait(ctx); err != nil {
		panic(err)
	}
	fanoutDur := time.Since(t1)
	afterFollow, _ := s.UnreadCount(ctx, celeb.ID)

	t2 := time.Now()
	marked, err := s.MarkAllNotificationsRead(ctx, celeb.ID)
	if err != nil {
		panic(err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		panic(err)
	}
	readDur := time.Since(t2)
	afterRead, _ := s.UnreadCount(ctx, celeb.ID)
	_ = stop(context.Background())

	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	p := func(q float64) time.Duration {
		if len(lats) == 0 {
			return 0
		}
		k := int(q*float64(len(lats))) - 1
		if k < 0 {
			k = 0
		}
		return lats[k]
	}

	fmt.Printf("N=%d CONC=%d\n", N, CONC)
	fmt.Printf("Follow writes total=%v p50=%v p95=%v p99=%v\n", followDur, p(0.50), p(0.95), p(0.99))
	fmt.Printf("Fanout drain=%v unread=%d (want %d)\n", fanoutDur, afterFollow, N)
	fmt.Printf("Mark all read: marked=%d drain=%v unread=%d (want 0)\n", marked, readDur, afterRead)
}
