package reaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/cache"
	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/lock"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/notification"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) drain() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type env struct {
	db    *gorm.DB
	reg   *content.Registry
	d     *Dispatcher
	store *store.Store
}

// newSyncEnv records events instead of dispatching them; tests deliver by hand.
func newSyncEnv(t *testing.T, opts ...Option) (*env, *recorder) {
	t.Helper()
	db := testutil.NewDB(t)
	reg := repository.NewRegistry()
	rec := &recorder{}
	return &env{
		db:    db,
		reg:   reg,
		d:     NewDispatcher(db, reg, opts...),
		store: store.New(db, reg, store.WithPublisher(rec)),
	}, rec
}

// newAsyncEnv wires the store straight into a running dispatcher.
func newAsyncEnv(t *testing.T, workers int, opts ...Option) *env {
	t.Helper()
	db := testutil.NewDB(t)
	reg := repository.NewRegistry()
	d := NewDispatcher(db, reg, opts...)
	stop := d.Start(context.Background(), workers)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stop(ctx)
	})
	return &env{db: db, reg: reg, d: d, store: store.New(db, reg, store.WithPublisher(d))}
}

func (e *env) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.d.Wait(ctx))
}

func (e *env) account(t *testing.T, name string) *model.Account {
	t.Helper()
	a, err := e.store.CreateAccount(context.Background(), &model.Account{Username: name, Phone: "9" + name})
	require.NoError(t, err)
	return a
}

func (e *env) post(t *testing.T, author string) *model.Post {
	t.Helper()
	p, err := e.store.CreatePost(context.Background(), &model.Post{AuthorID: author, Title: "p"})
	require.NoError(t, err)
	return p
}

func (e *env) reloadPost(t *testing.T, id string) *model.Post {
	t.Helper()
	p, err := e.store.GetPost(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *env) unread(t *testing.T, accountID string) int64 {
	t.Helper()
	n, err := e.store.UnreadCount(context.Background(), accountID)
	require.NoError(t, err)
	return n
}

func (e *env) status(t *testing.T, eventID string) *model.MutationEvent {
	t.Helper()
	rec, err := repository.NewEventRepository(e.db).Get(context.Background(), eventID)
	require.NoError(t, err)
	return rec
}

func (e *env) countByStatus(t *testing.T, status string) int64 {
	t.Helper()
	n, err := repository.NewEventRepository(e.db).CountByStatus(context.Background(), status)
	require.NoError(t, err)
	return n
}

func TestScenarioA_LikeDislikeUnlike(t *testing.T) {
	e := newAsyncEnv(t, 4)
	ctx := context.Background()
	a := e.account(t, "a")
	b := e.account(t, "b")
	p := e.post(t, a.ID)

	_, err := e.store.CreateLike(ctx, a.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	_, err = e.store.CreateLike(ctx, b.ID, p.Ref(), model.LikeTypeDislike)
	require.NoError(t, err)
	e.wait(t)
	got := e.reloadPost(t, p.ID)
	assert.Equal(t, int64(1), got.LikeCount)
	assert.Equal(t, int64(1), got.DislikeCount)

	require.NoError(t, e.store.DeleteLike(ctx, a.ID, p.Ref()))
	e.wait(t)
	got = e.reloadPost(t, p.ID)
	assert.Equal(t, int64(0), got.LikeCount)
	assert.Equal(t, int64(1), got.DislikeCount)

	assert.Zero(t, e.countByStatus(t, model.EventStatusPending))
	assert.Zero(t, e.countByStatus(t, model.EventStatusFailed))
}

func TestConvergence_ReorderedAndDuplicatedDelivery(t *testing.T) {
	e, rec := newSyncEnv(t)
	ctx := context.Background()
	author := e.account(t, "author")
	p := e.post(t, author.ID)
	c, err := e.store.CreateComment(ctx, &model.Comment{PostID: p.ID, AuthorID: author.ID, Content: "c"})
	require.NoError(t, err)
	rec.drain()

	rnd := rand.New(rand.NewSource(42))
	users := make([]*model.Account, 8)
	for i := range users {
		users[i] = e.account(t, fmt.Sprintf("u%d", i))
	}
	rec.drain()

	for round := 0; round < 3; round++ {
		for _, u := range users {
			for _, target := range []content.Ref{p.Ref(), c.Ref()} {
				switch rnd.Intn(3) {
				case 0:
					_, _ = e.store.CreateLike(ctx, u.ID, target, model.LikeTypeLike)
				case 1:
					_, _ = e.store.CreateLike(ctx, u.ID, target, model.LikeTypeDislike)
				default:
					_ = e.store.DeleteLike(ctx, u.ID, target)
				}
			}
		}
	}

	events := rec.drain()
	require.NotEmpty(t, events)
	delivery := append([]event.Event{}, events...)
	for _, i := range rnd.Perm(len(events))[:len(events)/2] {
		delivery = append(delivery, events[i])
	}
	rnd.Shuffle(len(delivery), func(i, j int) { delivery[i], delivery[j] = delivery[j], delivery[i] })
	for _, evt := range delivery {
		require.NoError(t, e.d.Handle(ctx, evt))
	}

	for _, target := range []content.Ref{p.Ref(), c.Ref()} {
		wantLikes, err := e.store.CountLikes(ctx, target, model.LikeTypeLike)
		require.NoError(t, err)
		wantDislikes, err := e.store.CountLikes(ctx, target, model.LikeTypeDislike)
		require.NoError(t, err)
		got, err := e.store.ContentCounters(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, wantLikes, got.Likes, target.String())
		assert.Equal(t, wantDislikes, got.Dislikes, target.String())
	}
}

func TestScenarioB_CommentCountTopLevelOnly(t *testing.T) {
	e := newAsyncEnv(t, 2)
	ctx := context.Background()
	a := e.account(t, "a")
	p := e.post(t, a.ID)

	c1, err := e.store.CreateComment(ctx, &model.Comment{PostID: p.ID, AuthorID: a.ID, Content: "c1"})
	require.NoError(t, err)
	for _, body := range []string{"c2", "c3"} {
		_, err := e.store.CreateComment(ctx, &model.Comment{ParentID: &c1.ID, AuthorID: a.ID, Content: body})
		require.NoError(t, err)
	}
	_, err = e.store.CreateComment(ctx, &model.Comment{PostID: p.ID, AuthorID: a.ID, Content: "c4"})
	require.NoError(t, err)
	e.wait(t)
	assert.Equal(t, int64(2), e.reloadPost(t, p.ID).CommentCount, "replies do not count toward the post")

	require.NoError(t, e.store.DeleteComment(ctx, c1.ID))
	e.wait(t)
	assert.Equal(t, int64(1), e.reloadPost(t, p.ID).CommentCount)
	assert.Zero(t, e.countByStatus(t, model.EventStatusFailed))
}

func TestScenarioC_ReadTransitions(t *testing.T) {
	e := newAsyncEnv(t, 2)
	ctx := context.Background()
	x := e.account(t, "x")
	y := e.account(t, "y")
	p := e.post(t, x.ID)
	// 先有一条未读，验证按增量变化
	for _, id := range []string{"n0", "n1"} {
		n := &model.Notification{ID: id, RecipientID: x.ID, ActorID: y.ID, Type: model.NotificationLike}
		n.SetSubject(p.Ref())
		_, err := e.store.CreateNotification(ctx, n)
		require.NoError(t, err)
		e.wait(t)
	}
	assert.Equal(t, int64(2), e.unread(t, x.ID))

	_, err := e.store.MarkNotificationRead(ctx, "n1")
	require.NoError(t, err)
	e.wait(t)
	assert.Equal(t, int64(1), e.unread(t, x.ID))

	_, err = e.store.MarkNotificationRead(ctx, "n1")
	require.NoError(t, err)
	e.wait(t)
	assert.Equal(t, int64(1), e.unread(t, x.ID), "marking read twice is a no-op")

	require.NoError(t, e.store.DeleteNotification(ctx, "n0"))
	e.wait(t)
	assert.Equal(t, int64(0), e.unread(t, x.ID))
}

func TestScenarioD_ConcurrentNotifications(t *testing.T) {
	e := newAsyncEnv(t, 4)
	ctx := context.Background()
	x := e.account(t, "x")
	y := e.account(t, "y")
	p := e.post(t, x.ID)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			note := &model.Notification{RecipientID: x.ID, ActorID: y.ID, Type: model.NotificationMention}
			note.SetSubject(p.Ref())
			_, err := e.store.CreateNotification(ctx, note)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	e.wait(t)
	assert.Equal(t, int64(n), e.unread(t, x.ID))
}

func TestNonNegative_UnderInterleavedReads(t *testing.T) {
	e, rec := newSyncEnv(t)
	ctx := context.Background()
	x := e.account(t, "x")
	y := e.account(t, "y")
	p := e.post(t, x.ID)
	rec.drain()

	for i := 0; i < 5; i++ {
		n := &model.Notification{ID: fmt.Sprintf("n%d", i), RecipientID: x.ID, ActorID: y.ID, Type: model.NotificationLike}
		n.SetSubject(p.Ref())
		_, err := e.store.CreateNotification(ctx, n)
		require.NoError(t, err)
		_, err = e.store.MarkNotificationRead(ctx, n.ID)
		require.NoError(t, err)
	}
	events := rec.drain()

	// 已读事件先于创建事件到达
	for i := len(events) - 1; i >= 0; i-- {
		require.NoError(t, e.d.Handle(ctx, events[i]))
		assert.GreaterOrEqual(t, e.unread(t, x.ID), int64(0))
	}
}

func TestIdempotentDrop_TargetGone(t *testing.T) {
	e, rec := newSyncEnv(t)
	ctx := context.Background()
	a := e.account(t, "a")
	p := e.post(t, a.ID)
	other := e.post(t, a.ID)
	_, err := e.store.CreateLike(ctx, a.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	for _, evt := range rec.drain() {
		require.NoError(t, e.d.Handle(ctx, evt))
	}

	_, err = e.store.CreateLike(ctx, a.ID, other.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	stale := rec.drain()
	require.NoError(t, e.store.DeletePost(ctx, other.ID))
	for _, evt := range append(stale, rec.drain()...) {
		assert.NoError(t, e.d.Handle(ctx, evt))
		assert.Equal(t, model.EventStatusDone, e.status(t, evt.ID).Status)
	}
	assert.Equal(t, int64(1), e.reloadPost(t, p.ID).LikeCount)
}

func TestConfigurationError_MarksFailedAndReports(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []string
	)
	hook := func(evt event.Event, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, evt.ID)
	}
	e, _ := newSyncEnv(t, WithFatalHook(hook))
	ctx := context.Background()

	l := &model.Like{ID: "l1", UserID: "u1", Type: model.LikeTypeLike}
	l.SetTarget(content.NewRef("story", "s1"))
	evt, err := event.New(event.KindLike, event.OpCreated, l.ID, nil, l)
	require.NoError(t, err)
	require.NoError(t, repository.NewEventRepository(e.db).Append(ctx, evt.Record()))

	err = e.d.Handle(ctx, evt)
	assert.True(t, content.IsConfigurationError(err))
	rec := e.status(t, evt.ID)
	assert.Equal(t, model.EventStatusFailed, rec.Status)
	assert.Contains(t, rec.LastError, "story")
	assert.Equal(t, []string{evt.ID}, reported)
}

func TestMalformed_MarksFailedWithoutFatalHook(t *testing.T) {
	called := false
	e, _ := newSyncEnv(t, WithFatalHook(func(event.Event, error) { called = true }))
	ctx := context.Background()

	evt, err := event.New(event.KindLike, event.OpDeleted, "l1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repository.NewEventRepository(e.db).Append(ctx, evt.Record()))

	err = e.d.Handle(ctx, evt)
	assert.ErrorIs(t, err, event.ErrMalformed)
	assert.Equal(t, model.EventStatusFailed, e.status(t, evt.ID).Status)
	assert.False(t, called)
}

func TestInfrastructureError_StaysPendingThenRelayRetries(t *testing.T) {
	e, rec := newSyncEnv(t)
	ctx := context.Background()

	fail := true
	e.d.Subscribe(event.Route{Kind: event.KindAccount, Op: event.OpCreated}, "flaky", func(context.Context, event.Event) error {
		if fail {
			return errors.New("redis timeout")
		}
		return nil
	})
	a := e.account(t, "a")
	evt := rec.drain()[0]
	require.Equal(t, a.ID, evt.EntityID)

	assert.Error(t, e.d.Handle(ctx, evt))
	st := e.status(t, evt.ID)
	assert.Equal(t, model.EventStatusPending, st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.Contains(t, st.LastError, "redis timeout")

	fail = false
	relay := NewRelay(e.db, e.d, RelayConfig{Grace: 0, BatchSize: 10, MaxAttempts: 5})
	n, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.EventStatusDone, e.status(t, evt.ID).Status)
}

func TestRelay_GivesUpAfterMaxAttempts(t *testing.T) {
	e, rec := newSyncEnv(t)
	ctx := context.Background()
	e.d.Subscribe(event.Route{Kind: event.KindAccount, Op: event.OpCreated}, "broken", func(context.Context, event.Event) error {
		return errors.New("still down")
	})
	e.account(t, "a")
	evt := rec.drain()[0]

	relay := NewRelay(e.db, e.d, RelayConfig{Grace: 0, BatchSize: 10, MaxAttempts: 3})
	for i := 0; i < 5; i++ {
		_, err := relay.ProcessOnce(ctx)
		require.NoError(t, err)
	}
	st := e.status(t, evt.ID)
	assert.Equal(t, model.EventStatusFailed, st.Status)
	assert.Equal(t, 3, st.Attempts)
}

func TestRelay_DeliversUnpublishedEvents(t *testing.T) {
	db := testutil.NewDB(t)
	reg := repository.NewRegistry()
	d := NewDispatcher(db, reg)
	s := store.New(db, reg) // 不挂 publisher，事件只落 outbox
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, &model.Account{Username: "a", Phone: "1"})
	require.NoError(t, err)
	p, err := s.CreatePost(ctx, &model.Post{AuthorID: a.ID, Title: "t"})
	require.NoError(t, err)
	_, err = s.CreateLike(ctx, a.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)

	relay := NewRelay(db, d, RelayConfig{Grace: 0, BatchSize: 2, MaxAttempts: 5, RatePerSecond: 1000})
	for {
		n, err := relay.ProcessOnce(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount)

	pending, err := repository.NewEventRepository(db).CountByStatus(ctx, model.EventStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestPublish_FullQueueLeavesEventForRelay(t *testing.T) {
	db := testutil.NewDB(t)
	reg := repository.NewRegistry()
	d := NewDispatcher(db, reg, WithQueueSize(1))
	s := store.New(db, reg, store.WithPublisher(d))
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, &model.Account{Username: "a", Phone: "1"})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, &model.Account{Username: "b", Phone: "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.QueueLen())

	stop := d.Start(ctx, 1)
	require.NoError(t, stop(ctx))

	relay := NewRelay(db, d, RelayConfig{Grace: 0, BatchSize: 10, MaxAttempts: 5})
	n, err := relay.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pending, err := repository.NewEventRepository(db).CountByStatus(ctx, model.EventStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestStart_CancelledContextClosesDispatcher(t *testing.T) {
	db := testutil.NewDB(t)
	reg := repository.NewRegistry()
	d := NewDispatcher(db, reg)
	s := store.New(db, reg, store.WithPublisher(d))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.CreateAccount(ctx, &model.Account{Username: fmt.Sprintf("u%d", i), Phone: fmt.Sprintf("%d", i)})
		require.NoError(t, err)
	}
	require.Equal(t, 5, d.QueueLen())

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	stop := d.Start(runCtx, 2)

	stopCtx, done := context.WithTimeout(ctx, 2*time.Second)
	defer done()
	require.NoError(t, stop(stopCtx), "workers gone, nothing left in flight")
	assert.Zero(t, d.QueueLen())

	// 关闭后的发布直接留在 outbox
	_, err := s.CreateAccount(ctx, &model.Account{Username: "late", Phone: "99"})
	require.NoError(t, err)
	assert.Zero(t, d.QueueLen())
	require.NoError(t, d.Wait(stopCtx))
	require.NoError(t, stop(stopCtx), "stop is idempotent")

	relay := NewRelay(db, d, RelayConfig{Grace: 0, BatchSize: 10, MaxAttempts: 5})
	_, err = relay.ProcessOnce(ctx)
	require.NoError(t, err)
	pending, err := repository.NewEventRepository(db).CountByStatus(ctx, model.EventStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRedisLockAndCacheInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cc := cache.NewCounterCache(client, time.Minute)

	e := newAsyncEnv(t, 4, WithLocker(lock.NewRedisLocker(client, time.Second)), WithCache(cc))
	ctx := context.Background()
	author := e.account(t, "author")
	p := e.post(t, author.ID)

	load := func(ctx context.Context) (content.Counts, error) { return e.store.ContentCounters(ctx, p.Ref()) }
	counts, err := cc.FetchContent(ctx, p.Ref(), load)
	require.NoError(t, err)
	assert.Zero(t, counts.Likes)

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		u := e.account(t, fmt.Sprintf("fan%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.store.CreateLike(ctx, u.ID, p.Ref(), model.LikeTypeLike)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	e.wait(t)

	counts, err = cc.FetchContent(ctx, p.Ref(), load)
	require.NoError(t, err)
	assert.Equal(t, int64(n), counts.Likes, "cached counters follow the recompute")
	assert.False(t, mr.Exists("engagement:lock:post:"+p.ID))

	// 未读数写穿缓存
	note := &model.Notification{RecipientID: author.ID, ActorID: author.ID, Type: model.NotificationMention}
	note.SetSubject(p.Ref())
	_, err = e.store.CreateNotification(ctx, note)
	require.NoError(t, err)
	e.wait(t)
	cached, ok, err := cc.Unread(ctx, author.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), cached)
}

func TestRecompute_StoresCountsAheadOfLateReaderFill(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cc := cache.NewCounterCache(client, time.Minute)

	e, rec := newSyncEnv(t, WithCache(cc))
	ctx := context.Background()
	author := e.account(t, "author")
	fan := e.account(t, "fan")
	p := e.post(t, author.ID)
	rec.drain()

	_, err := e.store.CreateLike(ctx, fan.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	likeEvt := rec.drain()[0]

	// 读方回源拿到旧计数后，重算提交并写入缓存，读方的回填不能覆盖它
	counts, err := cc.FetchContent(ctx, p.Ref(), func(ctx context.Context) (content.Counts, error) {
		stale, err := e.store.ContentCounters(ctx, p.Ref())
		require.NoError(t, err)
		require.NoError(t, e.d.Handle(ctx, likeEvt))
		return stale, nil
	})
	require.NoError(t, err)
	assert.Zero(t, counts.Likes)

	cached, ok, err := cc.Content(ctx, p.Ref())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, content.Counts{Likes: 1}, cached)
	assert.Equal(t, int64(1), e.reloadPost(t, p.ID).LikeCount)
}

func TestRecompute_GoneTargetDropsCachedCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cc := cache.NewCounterCache(client, time.Minute)

	e, rec := newSyncEnv(t, WithCache(cc))
	ctx := context.Background()
	author := e.account(t, "author")
	p := e.post(t, author.ID)
	_, err := e.store.CreateLike(ctx, author.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	evts := rec.drain()
	likeEvt := evts[len(evts)-1]
	require.Equal(t, event.KindLike, likeEvt.EntityKind)
	require.NoError(t, cc.StoreContent(ctx, p.Ref(), content.Counts{Likes: 1}))

	require.NoError(t, e.store.DeletePost(ctx, p.ID))
	require.NoError(t, e.d.Handle(ctx, likeEvt))
	assert.False(t, mr.Exists("engagement:counters:post:"+p.ID))
}

func TestFanoutSubscription(t *testing.T) {
	e := newAsyncEnv(t, 2)
	notification.NewFanout(e.store).Register(e.d)
	ctx := context.Background()
	a := e.account(t, "a")
	b := e.account(t, "b")
	p := e.post(t, a.ID)

	_, err := e.store.CreateLike(ctx, b.ID, p.Ref(), model.LikeTypeLike)
	require.NoError(t, err)
	_, err = e.store.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	e.wait(t)

	// fan-out 产生的通知再经计数服务更新未读数
	assert.Equal(t, int64(2), e.unread(t, a.ID))
	assert.Equal(t, int64(1), e.reloadPost(t, p.ID).LikeCount)
}
