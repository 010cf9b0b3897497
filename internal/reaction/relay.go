package reaction

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
)

// ClaimedHandler handles an event the relay has claimed from the outbox.
type ClaimedHandler interface {
	HandleClaimed(ctx context.Context, evt event.Event) error
}

type RelayConfig struct {
	PollInterval time.Duration
	// Grace 只补发早于 now-Grace 的事件，给进程内分发留出时间
	Grace         time.Duration
	BatchSize     int
	MaxAttempts   int
	RatePerSecond float64
}

// Relay 轮询 outbox 中未确认的事件并重新投递
type Relay struct {
	events  repository.EventRepository
	handler ClaimedHandler
	cfg     RelayConfig
	limiter *rate.Limiter
}

func NewRelay(db *gorm.DB, h ClaimedHandler, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	limit := rate.Inf
	burst := cfg.BatchSize
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Relay{
		events:  repository.NewEventRepository(db),
		handler: h,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Start 启动轮询循环；返回停止函数
func (r *Relay) Start(ctx context.Context) func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("relay poll failed", zap.Error(err))
				}
			}
		}
	}()
	return func(context.Context) error {
		close(stop)
		wg.Wait()
		return nil
	}
}

// ProcessOnce fails events that ran out of attempts, then claims one batch
// of pending events and delivers them in commit order. It returns how many
// events were delivered.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	failed, err := r.events.FailExhausted(ctx, r.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if failed > 0 {
		logger.Error("outbox events exhausted their attempts", zap.Int64("count", failed))
	}

	batch, err := r.events.ClaimPending(ctx, time.Now().Add(-r.cfg.Grace), r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, rec := range batch {
		if err := r.limiter.Wait(ctx); err != nil {
			return delivered, err
		}
		evt := event.FromRecord(rec)
		if err := r.handler.HandleClaimed(ctx, evt); err != nil {
			logger.Debug("relay delivery not acked",
				zap.String("event_id", evt.ID), zap.Int("attempt", rec.Attempts+1), zap.Error(err))
		}
		delivered++
	}
	return delivered, nil
}
