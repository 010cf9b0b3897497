// Package reaction routes committed mutation events to the handlers that
// keep denormalized counters consistent, and acks them in the outbox.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/cache"
	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/lock"
	"github.com/d60-Lab/engagement/internal/notification"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
)

const (
	LikeCountersHandler    = "like.counters"
	CommentCountersHandler = "comment.counters"
)

// FatalHook is told about events that can never succeed, such as an
// unregistered content kind.
type FatalHook func(evt event.Event, err error)

type Option func(*Dispatcher)

func WithLocker(l lock.Locker) Option { return func(d *Dispatcher) { d.locker = l } }

func WithCache(c *cache.CounterCache) Option { return func(d *Dispatcher) { d.cache = c } }

func WithFatalHook(h FatalHook) Option { return func(d *Dispatcher) { d.fatal = h } }

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

type subscription struct {
	name string
	h    event.Handler
}

// Dispatcher 事件分发器：有界队列 + worker 池，Publish 不阻塞
type Dispatcher struct {
	db       *gorm.DB
	registry *content.Registry
	events   repository.EventRepository
	counters *notification.CounterService
	locker   lock.Locker
	cache    *cache.CounterCache
	fatal    FatalHook
	tracer   trace.Tracer

	mu     sync.RWMutex
	routes map[event.Route][]subscription

	queueSize int
	queue     chan event.Event
	inflight  atomic.Int64

	// life 保护 closed 与入队：关闭后不再有事件进入队列
	life   sync.RWMutex
	closed bool
}

func NewDispatcher(db *gorm.DB, registry *content.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		db:        db,
		registry:  registry,
		events:    repository.NewEventRepository(db),
		locker:    lock.NewKeyedMutex(),
		fatal:     func(event.Event, error) {},
		tracer:    otel.Tracer("github.com/d60-Lab/engagement/internal/reaction"),
		routes:    make(map[event.Route][]subscription),
		queueSize: 10000,
	}
	for _, o := range opts {
		o(d)
	}
	d.queue = make(chan event.Event, d.queueSize)
	d.counters = notification.NewCounterService(db, notification.WithCache(d.cache), notification.WithLocker(d.locker))

	d.Subscribe(event.Route{Kind: event.KindLike, Op: event.OpCreated}, LikeCountersHandler, d.recomputeLikes)
	d.Subscribe(event.Route{Kind: event.KindLike, Op: event.OpDeleted}, LikeCountersHandler, d.recomputeLikes)
	d.Subscribe(event.Route{Kind: event.KindComment, Op: event.OpCreated}, CommentCountersHandler, d.recomputeComments)
	d.Subscribe(event.Route{Kind: event.KindComment, Op: event.OpDeleted}, CommentCountersHandler, d.recomputeComments)
	for _, op := range []event.Operation{event.OpCreated, event.OpUpdated, event.OpDeleted} {
		d.Subscribe(event.Route{Kind: event.KindNotification, Op: op}, notification.CounterHandler, d.counters.Handle)
	}
	return d
}

// Subscribe adds a handler to route. Handlers of one route run in
// subscription order.
func (d *Dispatcher) Subscribe(route event.Route, name string, h event.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[route] = append(d.routes[route], subscription{name: name, h: h})
}

// Counters exposes the unread counter service, e.g. for Reconcile.
func (d *Dispatcher) Counters() *notification.CounterService { return d.counters }

// Publish enqueues evt without blocking. When the queue is full, or the
// workers have exited, the event stays pending in the outbox for the relay.
func (d *Dispatcher) Publish(evt event.Event) {
	d.life.RLock()
	defer d.life.RUnlock()
	if d.closed {
		logger.Debug("reaction dispatcher closed, left for relay",
			zap.String("event_id", evt.ID), zap.String("route", evt.Route().String()))
		return
	}
	d.inflight.Add(1)
	select {
	case d.queue <- evt:
	default:
		d.inflight.Add(-1)
		logger.Warn("reaction queue full, left for relay",
			zap.String("event_id", evt.ID), zap.String("route", evt.Route().String()))
	}
}

// Start 启动 workers 个消费者；返回的停止函数会先等待队列排空。
// ctx 取消或停止后 dispatcher 关闭，之后的事件留给 relay。
func (d *Dispatcher) Start(ctx context.Context, workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stop := make(chan struct{})
	exited := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case evt := <-d.queue:
					d.process(ctx, evt)
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		d.close()
		close(exited)
	}()

	var once sync.Once
	return func(sctx context.Context) error {
		err := d.Wait(sctx)
		once.Do(func() { close(stop) })
		<-exited
		return err
	}
}

// close marks the dispatcher closed and drops whatever is still queued; the
// dropped events are pending in the outbox.
func (d *Dispatcher) close() {
	d.life.Lock()
	d.closed = true
	d.life.Unlock()

	dropped := 0
	for {
		select {
		case evt := <-d.queue:
			d.inflight.Add(-1)
			dropped++
			logger.Debug("reaction dispatcher closed, left for relay", zap.String("event_id", evt.ID))
		default:
			if dropped > 0 {
				logger.Warn("reaction dispatcher closed with queued events", zap.Int("left_for_relay", dropped))
			}
			return
		}
	}
}

// Wait blocks until every published event has been handled or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	for {
		if d.inflight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// QueueLen 当前队列长度（采样值）
func (d *Dispatcher) QueueLen() int { return len(d.queue) }

func (d *Dispatcher) process(ctx context.Context, evt event.Event) {
	defer d.inflight.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reaction handler panicked",
				zap.String("event_id", evt.ID), zap.Any("panic", r))
		}
	}()
	_ = d.Handle(ctx, evt)
}

// Handle runs every handler routed for evt and acks it in the outbox.
// It returns nil when the event was acked as done.
func (d *Dispatcher) Handle(ctx context.Context, evt event.Event) error {
	return d.handle(ctx, evt, false)
}

// HandleClaimed is Handle for an event whose attempt was already counted
// when the relay claimed it.
func (d *Dispatcher) HandleClaimed(ctx context.Context, evt event.Event) error {
	return d.handle(ctx, evt, true)
}

func (d *Dispatcher) handle(ctx context.Context, evt event.Event, claimed bool) error {
	ctx, span := d.tracer.Start(ctx, "reaction "+evt.Route().String(),
		trace.WithAttributes(
			attribute.String("event.id", evt.ID),
			attribute.String("event.entity_id", evt.EntityID),
		))
	defer span.End()

	d.mu.RLock()
	subs := d.routes[evt.Route()]
	d.mu.RUnlock()

	var fatal, retry error
	for _, sub := range subs {
		err := sub.h(ctx, evt)
		switch {
		case err == nil:
		case content.IsBenign(err):
			logger.Debug("reaction dropped",
				zap.String("event_id", evt.ID), zap.String("handler", sub.name), zap.Error(err))
		case content.IsConfigurationError(err), errors.Is(err, event.ErrMalformed):
			if fatal == nil {
				fatal = fmt.Errorf("%s: %w", sub.name, err)
			}
		default:
			logger.Warn("reaction failed, will retry",
				zap.String("event_id", evt.ID), zap.String("handler", sub.name), zap.Error(err))
			if retry == nil {
				retry = fmt.Errorf("%s: %w", sub.name, err)
			}
		}
	}

	switch {
	case fatal != nil:
		span.RecordError(fatal)
		span.SetStatus(codes.Error, "failed")
		logger.Error("reaction failed permanently", zap.String("event_id", evt.ID), zap.Error(fatal))
		if content.IsConfigurationError(fatal) {
			d.fatal(evt, fatal)
		}
		d.ack(evt, func() error { return d.events.MarkFailed(ctx, evt.ID, fatal.Error()) })
		return fatal
	case retry != nil:
		span.RecordError(retry)
		span.SetStatus(codes.Error, "retry")
		if claimed {
			d.ack(evt, func() error { return d.events.RecordError(ctx, evt.ID, retry.Error()) })
		} else {
			d.ack(evt, func() error { return d.events.RecordAttempt(ctx, evt.ID, retry.Error()) })
		}
		return retry
	}
	d.ack(evt, func() error { return d.events.MarkDone(ctx, evt.ID) })
	return nil
}

func (d *Dispatcher) ack(evt event.Event, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("ack event failed", zap.String("event_id", evt.ID), zap.Error(err))
	}
}
