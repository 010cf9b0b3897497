package reaction

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/content"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/pkg/logger"
)

// recomputeLikes 点赞增删后按目标重算 like/dislike 计数
func (d *Dispatcher) recomputeLikes(ctx context.Context, evt event.Event) error {
	var l model.Like
	if err := evt.DecodeState(&l); err != nil {
		return err
	}
	target := l.Target()
	return d.recompute(ctx, target, func(bound content.Resolver) error {
		lc, ok := bound.(content.LikeCounters)
		if !ok {
			return &content.ConfigurationError{Kind: target.Kind, Reason: "kind has no like counters"}
		}
		_, _, err := lc.RecomputeLikeCounts(ctx, target.ID)
		return err
	})
}

// recomputeComments 评论增删后重算其目标的评论数；目标类型没有评论计数时跳过
func (d *Dispatcher) recomputeComments(ctx context.Context, evt event.Event) error {
	var c model.Comment
	if err := evt.DecodeState(&c); err != nil {
		return err
	}
	target := c.Target()
	return d.recompute(ctx, target, func(bound content.Resolver) error {
		cc, ok := bound.(content.CommentCounters)
		if !ok {
			return nil
		}
		_, err := cc.RecomputeCommentCount(ctx, target.ID)
		return err
	})
}

// recompute runs fn for target under the per-target lock, inside one
// transaction, then refreshes the cached counters of target before the lock
// is released.
func (d *Dispatcher) recompute(ctx context.Context, target content.Ref, fn func(content.Resolver) error) error {
	binding, err := d.registry.Resolve(target)
	if err != nil {
		return err
	}

	unlock, err := d.locker.Lock(ctx, target.Key())
	if err != nil {
		return err
	}
	defer unlock()

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(binding(tx))
	})
	if err != nil && !content.IsBenign(err) {
		return err
	}
	d.refreshCache(ctx, target, binding)
	return err
}

// refreshCache 持锁写入最新计数；读不到计数或写入失败时删除缓存，交给读方回源
func (d *Dispatcher) refreshCache(ctx context.Context, target content.Ref, binding content.Binding) {
	if d.cache == nil {
		return
	}
	if cr, ok := binding(d.db).(content.CountsReader); ok {
		counts, err := cr.Counts(ctx, target.ID)
		if err == nil {
			err = d.cache.StoreContent(ctx, target, counts)
		}
		if err == nil {
			return
		}
		if !errors.Is(err, content.ErrTargetGone) {
			logger.Warn("refresh cached counters failed", zap.String("target", target.Key()), zap.Error(err))
		}
	}
	if err := d.cache.InvalidateContent(ctx, target); err != nil {
		logger.Warn("invalidate cached counters failed", zap.String("target", target.Key()), zap.Error(err))
	}
}
